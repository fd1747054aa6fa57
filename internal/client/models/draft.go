// Package models defines client-side data models used by the AdmitFlow CLI.
package models

// Field is one named form value. Form data keeps fields as an ordered list so
// the rendering order defined by the wizard survives the round trip through
// the server, which treats the payload as opaque JSON.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FormData is an ordered list of form fields.
type FormData []Field

// Get returns the value for name and whether it is present.
func (f FormData) Get(name string) (string, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// Set updates the field named name in place, or appends it preserving order.
func (f *FormData) Set(name, value string) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Name: name, Value: value})
}

// Clone returns an independent copy of the form data.
func (f FormData) Clone() FormData {
	if f == nil {
		return nil
	}
	out := make(FormData, len(f))
	copy(out, f)
	return out
}

// FileDescriptor describes one uploaded document attached to a draft.
type FileDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// DraftSnapshot is the client-side image of the draft at a point in time.
// Version is the last version the client has seen acknowledged by the server;
// zero means the draft has never been saved online.
type DraftSnapshot struct {
	DraftType     string
	FormData      FormData
	UploadedFiles []FileDescriptor
	CurrentStep   int
	ApplicationID string
	Version       int64
}

// Clone returns a deep copy so a snapshot handed to the sync layer cannot be
// mutated by later field edits.
func (s *DraftSnapshot) Clone() *DraftSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.FormData = s.FormData.Clone()
	if s.UploadedFiles != nil {
		out.UploadedFiles = make([]FileDescriptor, len(s.UploadedFiles))
		copy(out.UploadedFiles, s.UploadedFiles)
	}
	return &out
}
