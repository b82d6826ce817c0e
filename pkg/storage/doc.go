// Package storage saves downloaded media into an output directory.
//
// A Manager indexes the directory when it is created so repeated runs can
// skip files that are already present. Writes go to a temporary file that
// is renamed into place, so an interrupted download never leaves a
// truncated file under its final name.
//
// Usage:
//
//	m, err := storage.NewManager("output/media")
//	if err != nil {
//	    return err
//	}
//	if !m.IsDownloaded("abc_0.jpg") {
//	    path, _, err := m.Save(body, "abc_0.jpg")
//	}
package storage
