package openface

import "errors"

var (
	ErrOpenFaceUnavailable = errors.New("openface service unavailable")
	ErrInvalidResponse     = errors.New("invalid response from openface")
	ErrMissingLandmarks    = errors.New("face returned without the alignment landmarks")
)
