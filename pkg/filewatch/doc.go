// Package filewatch reloads a config file whenever it changes on disk.
//
// Watch observes the file's directory and filters events by name, so both
// in-place writes and the write-temp-then-rename saves of editors such as vim
// and VS Code trigger a reload. A file that fails to parse is logged and
// ignored; the caller keeps its previous value.
package filewatch
