/*
Copyright © 2019 the Drift authors.
This file is part of Drift.

Drift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Drift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Drift.  If not, see <http://www.gnu.org/licenses/>.
*/

package drift

import (
	"context"
	"fmt"
	"io"

	"github.com/ctessum/cdf"
	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
)

// CDFSource is a FieldSource backed by a NetCDF file. Block reads go
// through a request cache, so that a block that is evicted with the time
// window and needed again soon after is not read from disk twice.
type CDFSource struct {
	f     *cdf.File
	cache *requestcache.Cache
}

type blockRequest struct {
	variable   string
	t          int
	start, end []int
}

// NewCDFSource opens the NetCDF data in rw. cacheEntries is the number
// of recently read blocks to keep in memory; zero disables the cache.
func NewCDFSource(rw cdf.ReaderWriterAt, cacheEntries int) (*CDFSource, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("drift: opening NetCDF field source: %v", err)
	}
	s := &CDFSource{f: f}
	caches := []requestcache.CacheFunc{requestcache.Deduplicate()}
	if cacheEntries > 0 {
		caches = append(caches, requestcache.Memory(cacheEntries))
	}
	// The file is read from a single goroutine.
	s.cache = requestcache.NewCache(s.process, 1, caches...)
	return s, nil
}

// Header returns the NetCDF header of the file.
func (s *CDFSource) Header() *cdf.Header { return s.f.Header }

// Lengths returns the dimension lengths of variable, or an error if the
// file does not contain it.
func (s *CDFSource) Lengths(variable string) ([]int, error) {
	l := s.f.Header.Lengths(variable)
	if len(l) == 0 {
		return nil, fmt.Errorf("drift: NetCDF file has no variable %s", variable)
	}
	return l, nil
}

// Coordinate reads the whole of the one-dimensional variable name.
func (s *CDFSource) Coordinate(name string) ([]float64, error) {
	l, err := s.Lengths(name)
	if err != nil {
		return nil, err
	}
	if len(l) != 1 {
		return nil, fmt.Errorf("drift: coordinate variable %s has %d dimensions; it should have 1", name, len(l))
	}
	r := s.f.Reader(name, nil, nil)
	buf := r.Zero(l[0])
	o := make([]float64, l[0])
	if err := readValues(r, buf, o); err != nil {
		return nil, fmt.Errorf("drift: reading coordinate variable %s: %v", name, err)
	}
	return o, nil
}

// ReadBlock implements FieldSource.
func (s *CDFSource) ReadBlock(ctx context.Context, variable string, t int, start, end []int) (*sparse.DenseArray, error) {
	key := fmt.Sprintf("%s/%d/%v/%v", variable, t, start, end)
	req := blockRequest{variable: variable, t: t, start: start, end: end}
	r, err := s.cache.NewRequest(ctx, req, key).Result()
	if err != nil {
		return nil, err
	}
	return r.(*sparse.DenseArray), nil
}

func (s *CDFSource) process(ctx context.Context, payload interface{}) (interface{}, error) {
	req := payload.(blockRequest)
	lengths, err := s.Lengths(req.variable)
	if err != nil {
		return nil, err
	}
	if len(req.start) == 0 {
		return nil, fmt.Errorf("drift: reading %s: empty block", req.variable)
	}
	prefix, err := timePrefix(req.variable, len(lengths), len(req.start), req.t)
	if err != nil {
		return nil, err
	}
	out := sparse.ZerosDense(boxShape(req.start, req.end)...)
	last := len(req.start) - 1
	rowLen := req.end[last] - req.start[last]
	var readErr error
	forEachRow(req.start, req.end, func(row []int, pos int) {
		if readErr != nil {
			return
		}
		if err := ctx.Err(); err != nil {
			readErr = err
			return
		}
		begin := append(append([]int(nil), prefix...), row...)
		stop := append([]int(nil), begin...)
		stop[len(stop)-1] = req.end[last]
		r := s.f.Reader(req.variable, begin, stop)
		readErr = readValues(r, r.Zero(rowLen), out.Elements[pos:pos+rowLen])
	})
	if readErr != nil {
		return nil, fmt.Errorf("drift: reading %s at time slice %d, block [%v, %v): %v",
			req.variable, req.t, req.start, req.end, readErr)
	}
	return out, nil
}

// readValues fills dst from r, using buf (of the variable's type and the
// length of dst) as scratch space.
func readValues(r cdf.Reader, buf interface{}, dst []float64) error {
	n, err := r.Read(buf)
	if err != nil && !(err == io.EOF && n == len(dst)) {
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("read %d values; wanted %d", n, len(dst))
	}
	switch v := buf.(type) {
	case []float32:
		for i, x := range v {
			dst[i] = float64(x)
		}
	case []float64:
		copy(dst, v)
	case []int32:
		for i, x := range v {
			dst[i] = float64(x)
		}
	case []int16:
		for i, x := range v {
			dst[i] = float64(x)
		}
	case []uint8:
		for i, x := range v {
			dst[i] = float64(x)
		}
	default:
		return fmt.Errorf("unsupported data type %T", buf)
	}
	return nil
}
