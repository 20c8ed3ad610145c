package bubbletea

var _ MessageBlock = (*UserMessageBlock)(nil)

// UserMessageBlock renders a user turn on a full-width background. A pending
// block is one the relay has not yet confirmed.
type UserMessageBlock struct {
	text    string
	pending bool
	styles  Styles
}

// NewUserMessageBlock creates a confirmed UserMessageBlock.
func NewUserMessageBlock(text string, styles Styles) *UserMessageBlock {
	return &UserMessageBlock{text: text, styles: styles}
}

// NewPendingUserMessageBlock creates an optimistic UserMessageBlock.
func NewPendingUserMessageBlock(text string, styles Styles) *UserMessageBlock {
	return &UserMessageBlock{text: text, pending: true, styles: styles}
}

// Text returns the message text.
func (b *UserMessageBlock) Text() string { return b.text }

// Pending reports whether the turn is still unconfirmed.
func (b *UserMessageBlock) Pending() bool { return b.pending }

// Confirm marks the turn as accepted.
func (b *UserMessageBlock) Confirm() { b.pending = false }

func (b *UserMessageBlock) View(width int) string {
	style := b.styles.UserBg.Width(width)
	if b.pending {
		style = style.Faint(true)
	}
	return style.Render(b.text)
}
