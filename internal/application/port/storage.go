package port

import "context"

// AttachmentStore keeps uploaded files and hands back opaque references
type AttachmentStore interface {
	// Save stores content under a fresh reference derived from originalName's extension
	Save(ctx context.Context, originalName string, content []byte) (string, error)

	// Open returns the stored bytes for ref
	Open(ctx context.Context, ref string) ([]byte, error)

	// Delete removes ref; deleting a missing ref is not an error
	Delete(ctx context.Context, ref string) error
}
