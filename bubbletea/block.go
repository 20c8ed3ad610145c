package bubbletea

// MessageBlock is one rendered turn in the transcript. The model owns layout
// and passes the content width in.
type MessageBlock interface {
	View(width int) string
}
