package corectx

import (
	"iter"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/value"
)

// MemSheet is the reference in-memory Sheet implementation, with the
// immutable-value semantics the contract documents: Put returns a new
// sheet sharing the unchanged cells, the receiver is never mutated.
// Callers with their own storage implement the Sheet interface instead.
type MemSheet struct {
	name  address.SheetName
	cells map[address.ARef]value.CellValue
}

// NewMemSheet creates an empty sheet with the given name.
func NewMemSheet(name address.SheetName) *MemSheet {
	return &MemSheet{name: name, cells: map[address.ARef]value.CellValue{}}
}

func (s *MemSheet) Name() address.SheetName { return s.name }

func (s *MemSheet) Get(ref address.ARef) value.CellValue {
	if v, ok := s.cells[ref]; ok {
		return v
	}
	return value.Empty()
}

// Put returns a copy of s with ref set to v. Storing an Empty value
// deletes the cell so UsedRange stays tight.
func (s *MemSheet) Put(ref address.ARef, v value.CellValue) *MemSheet {
	out := &MemSheet{name: s.name, cells: make(map[address.ARef]value.CellValue, len(s.cells)+1)}
	for k, cv := range s.cells {
		out.cells[k] = cv
	}
	if v.Kind == value.KindEmpty {
		delete(out.cells, ref)
	} else {
		out.cells[ref] = v
	}
	return out
}

func (s *MemSheet) UsedRange() (address.CellRange, bool) {
	if len(s.cells) == 0 {
		return address.CellRange{}, false
	}
	first := true
	var minRef, maxRef address.ARef
	for ref := range s.cells {
		if first {
			minRef, maxRef = ref, ref
			first = false
			continue
		}
		if ref.Col < minRef.Col {
			minRef.Col = ref.Col
		}
		if ref.Row < minRef.Row {
			minRef.Row = ref.Row
		}
		if ref.Col > maxRef.Col {
			maxRef.Col = ref.Col
		}
		if ref.Row > maxRef.Row {
			maxRef.Row = ref.Row
		}
	}
	return address.NewRange(minRef, maxRef), true
}

func (s *MemSheet) Cells() iter.Seq2[address.ARef, value.CellValue] {
	return func(yield func(address.ARef, value.CellValue) bool) {
		for ref, v := range s.cells {
			if !yield(ref, v) {
				return
			}
		}
	}
}

// MemSheetFrom copies every cell of src into a new MemSheet, used when a
// caller needs a writable snapshot of an arbitrary Sheet implementation
// (the array-formula spill path).
func MemSheetFrom(src Sheet) *MemSheet {
	out := NewMemSheet(src.Name())
	for ref, v := range src.Cells() {
		out.cells[ref] = v
	}
	return out
}

// MemWorkbook is the reference Workbook implementation: an ordered list of
// sheets looked up by name.
type MemWorkbook struct {
	order  []address.SheetName
	sheets map[address.SheetName]Sheet
}

func NewMemWorkbook(sheets ...Sheet) *MemWorkbook {
	wb := &MemWorkbook{sheets: map[address.SheetName]Sheet{}}
	for _, s := range sheets {
		wb = wb.Add(s)
	}
	return wb
}

// Add returns a copy of wb with sheet appended (or replaced, keeping its
// position, when a sheet of that name already exists).
func (wb *MemWorkbook) Add(sheet Sheet) *MemWorkbook {
	out := &MemWorkbook{
		order:  append([]address.SheetName(nil), wb.order...),
		sheets: make(map[address.SheetName]Sheet, len(wb.sheets)+1),
	}
	for k, v := range wb.sheets {
		out.sheets[k] = v
	}
	if _, exists := out.sheets[sheet.Name()]; !exists {
		out.order = append(out.order, sheet.Name())
	}
	out.sheets[sheet.Name()] = sheet
	return out
}

func (wb *MemWorkbook) Sheet(name address.SheetName) (Sheet, bool) {
	s, ok := wb.sheets[name]
	return s, ok
}

func (wb *MemWorkbook) Sheets() iter.Seq[Sheet] {
	return func(yield func(Sheet) bool) {
		for _, name := range wb.order {
			if !yield(wb.sheets[name]) {
				return
			}
		}
	}
}
