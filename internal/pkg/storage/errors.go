package storage

import "fmt"

// AccessError reports that a folder is unreachable or unauthorized.
type AccessError struct {
	Folder string
	Err    error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("folder %q is not accessible: %v", e.Folder, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// UploadError reports a failed object creation.
type UploadError struct {
	Name string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q failed: %v", e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DeleteError reports a failed object deletion.
type DeleteError struct {
	ID  string
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete of object %q failed: %v", e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }
