package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ecnpath/ecnpath/analyzer/internal/obs"
)

// multiSource reads several observation files back to back. It satisfies
// aggregate.Source. An error names the file it came from.
type multiSource struct {
	names    []string
	readers  []*obs.Reader
	files    []io.Closer
	vantages []string

	cur int
	err error
}

// openSources opens every path up front so a missing file fails before any
// work is done. No paths, or "-", means stdin.
func openSources(paths []string, stdin io.Reader) (*multiSource, error) {
	if len(paths) == 0 {
		paths = []string{"-"}
	}
	s := &multiSource{}
	for _, p := range paths {
		if p == "-" {
			s.add(p, stdin)
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("input: %w", err)
		}
		s.files = append(s.files, f)
		s.add(p, f)
	}
	return s, nil
}

func (s *multiSource) add(name string, r io.Reader) {
	s.names = append(s.names, name)
	s.readers = append(s.readers, obs.NewReader(r))
	s.vantages = append(s.vantages, "")
}

// setVantages makes every observation of input i start at vantages[i].
// Empty entries leave paths as read.
func (s *multiSource) setVantages(vantages []string) {
	copy(s.vantages, vantages)
}

// Inputs returns the number of input streams.
func (s *multiSource) Inputs() int {
	return len(s.readers)
}

func (s *multiSource) Next() bool {
	if s.err != nil {
		return false
	}
	for s.cur < len(s.readers) {
		r := s.readers[s.cur]
		if r.Next() {
			return true
		}
		if err := r.Err(); err != nil {
			s.err = fmt.Errorf("input %s: %w", s.names[s.cur], err)
			return false
		}
		s.cur++
	}
	return false
}

func (s *multiSource) Observation() obs.Observation {
	o := s.readers[s.cur].Observation()
	if vp := s.vantages[s.cur]; vp != "" {
		return o.FromVantage(vp)
	}
	return o
}

func (s *multiSource) Err() error {
	return s.err
}

// Close closes every opened file.
func (s *multiSource) Close() error {
	var errs []error
	for _, f := range s.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}
