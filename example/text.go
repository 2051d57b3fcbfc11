// text.go -- read key/value pairs from a variety of text files

package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

type record struct {
	key []byte
	val []byte
}

// readInputs gathers key/value pairs from the given files; stdin when
// there are none. File type is picked by suffix, like the inputs the
// tool has always taken.
func readInputs(args []string) (keys, vals [][]byte, err error) {
	var recs []record

	if len(args) == 0 {
		recs, err = readTextStream(os.Stdin, " \t")
		if err != nil {
			return nil, nil, fmt.Errorf("can't read STDIN: %w", err)
		}
		return split(recs)
	}

	for _, f := range args {
		var add []record

		switch {
		case strings.HasSuffix(f, ".txt"):
			add, err = readTextFile(f, " \t")

		case strings.HasSuffix(f, ".csv"):
			add, err = readCSVFile(f, ',', '#', 0, 1)

		default:
			warn("don't know how to add %s", f)
			continue
		}

		if err != nil {
			return nil, nil, fmt.Errorf("can't add %s: %w", f, err)
		}

		recs = append(recs, add...)
	}

	return split(recs)
}

func split(recs []record) (keys, vals [][]byte, err error) {
	keys = make([][]byte, len(recs))
	vals = make([][]byte, len(recs))
	for i, r := range recs {
		keys[i] = r.key
		vals[i] = r.val
	}
	return keys, vals, nil
}

// readTextFile reads key/value pairs from text file 'fn' where key and
// value are separated by one of the characters in 'delim'. Empty lines
// and lines starting with '#' are skipped.
func readTextFile(fn string, delim string) ([]record, error) {
	fd, err := os.Open(fn)
	if err != nil {
		return nil, err
	}

	defer fd.Close()

	return readTextStream(fd, delim)
}

// readTextStream is readTextFile over an open stream. A line with no
// delimiter becomes a key with an empty value.
func readTextStream(fd io.Reader, delim string) ([]record, error) {
	if len(delim) == 0 {
		delim = " \t"
	}

	var recs []record

	sc := bufio.NewScanner(bufio.NewReader(fd))
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if len(s) == 0 || s[0] == '#' {
			continue
		}

		var k, v string

		// if we have no delimiters - we treat the value as "boolean"
		if i := strings.IndexAny(s, delim); i > 0 {
			k = s[:i]
			v = strings.TrimSpace(s[i:])
		} else {
			k = s
		}

		recs = append(recs, record{key: []byte(k), val: []byte(v)})
	}

	return recs, sc.Err()
}

// readCSVFile reads key/value pairs from CSV file 'fn'. 'kwfield' and
// 'valfield' indicate the field# of the key and value respectively. If
// 'comment' is not 0, lines beginning with that rune are discarded.
// Records where the fields can't be evaluated are discarded.
func readCSVFile(fn string, comma, comment rune, kwfield, valfield int) ([]record, error) {
	fd, err := os.Open(fn)
	if err != nil {
		return nil, err
	}

	defer fd.Close()

	if kwfield < 0 {
		kwfield = 0
	}
	if valfield < 0 {
		valfield = 1
	}

	max := valfield
	if kwfield > valfield {
		max = kwfield
	}
	max += 1

	cr := csv.NewReader(fd)
	cr.Comma = comma
	cr.Comment = comment
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var recs []record
	for {
		v, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if len(v) < max {
			continue
		}

		recs = append(recs, record{key: []byte(v[kwfield]), val: []byte(v[valfield])})
	}

	return recs, nil
}
