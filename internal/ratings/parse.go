package ratings

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Digital-Shane/show-score/internal/core"
)

const missingValue = `\N`

// Parse reads an IMDb title.ratings.tsv table, plain or gzipped. Lines that
// cannot be used are skipped and counted; only read failures are errors.
func Parse(r io.Reader) (map[string]core.Rating, int, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var src io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, 0, fmt.Errorf("open gzip ratings: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	entries := make(map[string]core.Rating, 1<<16)
	skipped := 0

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			first = false
			if strings.HasPrefix(line, "tconst") {
				continue
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		id, rating, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		entries[id] = rating
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read ratings: %w", err)
	}

	return entries, skipped, nil
}

func parseLine(line string) (string, core.Rating, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) != 3 {
		return "", core.Rating{}, false
	}
	for _, f := range fields {
		if f == missingValue {
			return "", core.Rating{}, false
		}
	}

	id, ok := core.CanonicalID(fields[0])
	if !ok {
		return "", core.Rating{}, false
	}

	avg, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil || math.IsNaN(avg) || avg < 0 || avg > 10 {
		return "", core.Rating{}, false
	}

	votes, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil || votes < 0 {
		return "", core.Rating{}, false
	}

	return id, core.Rating{Average: avg, Votes: votes}, true
}
