// Package artifact stores the binary payloads that travel with
// conversations: images, documents, audio. Handoff attachments are
// offloaded here and replaced by versioned references so large blobs
// never ride inside the handoff context itself.
package artifact

// Artifact is one stored binary payload.
type Artifact struct {
	// Data is the raw payload bytes.
	Data []byte `json:"data,omitempty"`
	// MimeType is the IANA media type of Data.
	MimeType string `json:"mime_type,omitempty"`
	// Name is an optional display name or filename.
	Name string `json:"name,omitempty"`
}
