package events

// Event type constants for kelindar/event.
const (
	TypeExportProgress uint32 = iota + 1
	TypeExportCompleted
	TypeExportFailed
	TypeExportCanceled
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ExportProgress carries the encoder's frame counter during finalize. Frame
// values strictly increase within one export and never exceed Total.
type ExportProgress struct {
	Frame int64 `json:"frame"`
	Total int64 `json:"total"`
}

// Type returns the event type identifier for ExportProgress.
func (e ExportProgress) Type() uint32 { return TypeExportProgress }

// ExportCompleted is published once when an export reaches Done.
type ExportCompleted struct {
	OutputPath string `json:"output_path"`
	SizeBytes  int64  `json:"size_bytes"`
}

// Type returns the event type identifier for ExportCompleted.
func (e ExportCompleted) Type() uint32 { return TypeExportCompleted }

// ExportFailed is published once when an export reaches Failed.
type ExportFailed struct {
	Message string `json:"message"`
}

// Type returns the event type identifier for ExportFailed.
func (e ExportFailed) Type() uint32 { return TypeExportFailed }

// ExportCanceled is published once when an export reaches Cancelled.
type ExportCanceled struct{}

// Type returns the event type identifier for ExportCanceled.
func (e ExportCanceled) Type() uint32 { return TypeExportCanceled }
