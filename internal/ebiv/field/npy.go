package field

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/banshee-data/eventflow/internal/fsutil"
	"github.com/sbinet/npyio"
)

// ErrNPYFormat is returned for .npy files this package cannot decode.
var ErrNPYFormat = errors.New("field: unsupported npy file")

const npyDtype = "<f8"

// WriteNPY encodes f as a .npy array of little-endian float64 with shape
// (NT, NY, NX, 6). Fields with an empty axis cannot carry that shape and
// are rejected.
func WriteNPY(w io.Writer, f *Field) error {
	if f.NT == 0 || f.NY == 0 || f.NX == 0 {
		return fmt.Errorf("%w: empty field shape %v", ErrNPYFormat, f.Shape())
	}
	// npyio derives the shape from nested fixed-size arrays.
	elem := reflect.ArrayOf(f.NY, reflect.ArrayOf(f.NX, reflect.ArrayOf(Components, reflect.TypeOf(float64(0)))))
	arr := reflect.MakeSlice(reflect.SliceOf(elem), f.NT, f.NT)
	i := 0
	for t := 0; t < f.NT; t++ {
		plane := arr.Index(t)
		for y := 0; y < f.NY; y++ {
			row := plane.Index(y)
			for x := 0; x < f.NX; x++ {
				cell := row.Index(x)
				for k := 0; k < Components; k++ {
					cell.Index(k).SetFloat(f.Data[i])
					i++
				}
			}
		}
	}
	if err := npyio.Write(w, arr.Interface()); err != nil {
		return fmt.Errorf("field: write npy: %w", err)
	}
	return nil
}

// ReadNPY decodes a C-ordered little-endian float64 .npy array of shape
// (NT, NY, NX, 6).
func ReadNPY(r io.Reader) (*Field, error) {
	rr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNPYFormat, err)
	}
	d := rr.Header.Descr
	if d.Type != npyDtype {
		return nil, fmt.Errorf("%w: dtype %q, want %q", ErrNPYFormat, d.Type, npyDtype)
	}
	if d.Fortran {
		return nil, fmt.Errorf("%w: fortran order", ErrNPYFormat)
	}
	if len(d.Shape) != 4 || d.Shape[3] != Components {
		return nil, fmt.Errorf("%w: shape %v, want (nt, ny, nx, %d)", ErrNPYFormat, d.Shape, Components)
	}

	f, err := New(d.Shape[0], d.Shape[1], d.Shape[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNPYFormat, err)
	}
	if len(f.Data) == 0 {
		return f, nil
	}
	if err := rr.Read(&f.Data); err != nil {
		return nil, fmt.Errorf("field: read npy data: %w", err)
	}
	return f, nil
}

// SaveNPY writes f to path.
func SaveNPY(fsys fsutil.FileSystem, path string, f *Field) error {
	w, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("field: create %s: %w", path, err)
	}
	err = WriteNPY(w, f)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("field: close %s: %w", path, cerr)
	}
	return err
}

// LoadNPY reads a field from path.
func LoadNPY(fsys fsutil.FileSystem, path string) (*Field, error) {
	r, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("field: open %s: %w", path, err)
	}
	defer r.Close()
	return ReadNPY(r)
}
