package models

// Sheet is a single table of a workbook
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Workbook is an opened file and its sheets
type Workbook struct {
	FileID FileID
	Path   string
	Name   string
	Sheets []Sheet
}

// Sheet returns the sheet at index, or false when out of range
func (w *Workbook) Sheet(index int) (Sheet, bool) {
	if w == nil || index < 0 || index >= len(w.Sheets) {
		return Sheet{}, false
	}
	return w.Sheets[index], true
}
