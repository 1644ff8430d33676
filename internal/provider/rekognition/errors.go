package rekognition

import "errors"

var (
	// ErrInvalidCredentials indicates that AWS credentials are invalid or missing
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")

	// ErrInvalidImage indicates the payload was rejected before calling AWS
	ErrInvalidImage = errors.New("invalid image for rekognition")

	// ErrMissingLandmarks indicates a face came back without eye corners or nose
	ErrMissingLandmarks = errors.New("face returned without the alignment landmarks")
)
