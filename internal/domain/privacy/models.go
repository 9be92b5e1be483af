package privacy

type Label string

const (
	LabelFace     Label = "face"
	LabelText     Label = "text"
	LabelPlate    Label = "plate"
	LabelDocument Label = "document"
)

// BBox is a rectangle in image-relative coordinates, every field in [0,1].
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type Detection struct {
	ID    string  `json:"id"`
	Label Label   `json:"label"`
	Score float64 `json:"score"`
	BBox  BBox    `json:"bbox"`
	Text  string  `json:"text,omitempty"`
}

type AnalysisResult struct {
	FilePath    string      `json:"filePath"`
	Detections  []Detection `json:"detections"`
	Explanation string      `json:"explanation"`
}

// Upload is what the HTTP layer hands to the analysis service.
type Upload struct {
	FilePath string
	Filename string
	Data     []byte
}

// Vertex is a polygon corner in pixel space.
type Vertex struct {
	X float64
	Y float64
}

type FaceAnnotation struct {
	// Confidence is nil when the provider did not report one.
	Confidence *float64
	Vertices   []Vertex
}

type TextAnnotation struct {
	Description string
	Vertices    []Vertex
}

type ObjectAnnotation struct {
	Name  string
	Score float64
}

type LabelAnnotation struct {
	Description string
	Score       float64
}

// RawAnnotations is the provider response reduced to the fields the
// pipeline reads. Width and Height are the source image dimensions in pixels.
type RawAnnotations struct {
	Width   int
	Height  int
	Faces   []FaceAnnotation
	Texts   []TextAnnotation
	Objects []ObjectAnnotation
	Labels  []LabelAnnotation
}

// Counts is the per-category breakdown of a detection list.
type Counts struct {
	Faces     int `json:"face"`
	Texts     int `json:"text"`
	Plates    int `json:"plate"`
	Documents int `json:"document"`
}

func (c Counts) Total() int {
	return c.Faces + c.Texts + c.Plates + c.Documents
}
