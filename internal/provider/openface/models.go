package openface

// Indices into the 68-point dlib landmark layout used by the sidecar.
const (
	landmarkLeftEyeOuter  = 36
	landmarkRightEyeOuter = 45
	landmarkNoseTip       = 33
	landmarkCount         = 68
)

// DetectRequest for POST /detect
type DetectRequest struct {
	Img     string `json:"img"` // base64 encoded jpeg
	Largest bool   `json:"largest,omitempty"`
}

// DetectResponse from POST /detect
type DetectResponse struct {
	Faces []DetectedFace `json:"faces"`
}

type DetectedFace struct {
	Box        FacialArea   `json:"box"`
	Landmarks  [][2]float64 `json:"landmarks"`
	Confidence float64      `json:"confidence"`
}

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// RepresentRequest for POST /represent
type RepresentRequest struct {
	Img   string `json:"img"`   // base64 encoded aligned crop
	Model string `json:"model"` // "nn4.small2.v1", ...
}

// RepresentResponse from POST /represent
type RepresentResponse struct {
	Embedding []float64 `json:"embedding"`
}
