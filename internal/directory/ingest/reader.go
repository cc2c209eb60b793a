// Package ingest reads the EDGAR full-index company.idx file and feeds
// its rows into the directory.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gartstein/companydir/internal/directory/models"
)

// Column offsets of the fixed-width company.idx layout.
const (
	nameEnd = 62
	formEnd = 74
	cikEnd  = 86
	dateEnd = 98
)

const lastReceivedPrefix = "Last Data Received:"

// ErrMalformedLine is wrapped into the error for a row that cannot be
// parsed.
var ErrMalformedLine = errors.New("malformed index line")

// Reader parses company.idx rows one at a time.
type Reader struct {
	scanner      *bufio.Scanner
	line         int
	headerDone   bool
	lastReceived time.Time
}

func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: s}
}

// LastDataReceived is the date printed in the file header. It is zero
// until the header has been read or when the header carries no date.
func (r *Reader) LastDataReceived() time.Time {
	return r.lastReceived
}

// Next returns the next record, io.EOF at the end of input, or an error
// wrapping ErrMalformedLine for a bad row. Reading may continue after a
// malformed row.
func (r *Reader) Next() (models.IndexRecord, error) {
	if !r.headerDone {
		if err := r.skipHeader(); err != nil {
			return models.IndexRecord{}, err
		}
	}
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec, err := parseLine(text)
		if err != nil {
			return models.IndexRecord{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return models.IndexRecord{}, fmt.Errorf("failed to read index: %w", err)
	}
	return models.IndexRecord{}, io.EOF
}

// skipHeader consumes everything up to and including the dashed rule.
func (r *Reader) skipHeader() error {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if strings.HasPrefix(text, lastReceivedPrefix) {
			date := strings.TrimSpace(strings.TrimPrefix(text, lastReceivedPrefix))
			if t, err := time.Parse("January 2, 2006", date); err == nil {
				r.lastReceived = t
			}
		}
		if text != "" && strings.Trim(text, "-") == "" {
			r.headerDone = true
			return nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return fmt.Errorf("failed to read index header: %w", err)
	}
	return errors.New("index header not terminated by a dashed line")
}

func parseLine(line string) (models.IndexRecord, error) {
	if len(line) <= cikEnd {
		return models.IndexRecord{}, fmt.Errorf("%w: too short", ErrMalformedLine)
	}
	rec := models.IndexRecord{
		Name:     strings.TrimSpace(line[:nameEnd]),
		FormType: strings.TrimSpace(line[nameEnd:formEnd]),
	}
	cik, err := strconv.ParseInt(strings.TrimSpace(line[formEnd:cikEnd]), 10, 64)
	if err != nil || cik <= 0 {
		return models.IndexRecord{}, fmt.Errorf("%w: bad cik %q", ErrMalformedLine, line[formEnd:cikEnd])
	}
	rec.CIK = models.CIK(cik)
	if len(line) > dateEnd {
		rec.DateFiled = strings.TrimSpace(line[cikEnd:dateEnd])
		rec.FileName = strings.TrimSpace(line[dateEnd:])
	} else {
		rec.DateFiled = strings.TrimSpace(line[cikEnd:])
	}
	if rec.Name == "" {
		return models.IndexRecord{}, fmt.Errorf("%w: empty company name", ErrMalformedLine)
	}
	return rec, nil
}

// Fetch downloads an index file. EDGAR rejects requests without a
// descriptive User-Agent.
func Fetch(ctx context.Context, url, userAgent string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch index: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
