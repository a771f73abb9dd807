package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lmap-agent/lmapd/internal/csvcodec"
	"github.com/lmap-agent/lmapd/internal/model"
)

// ReadResults scans dir (the reporter's pertinent Schedule active
// queue) for complete `.meta`/`.data` pairs and reconstitutes a
// model.Result for each, per §4.2 "Read results". The `.data` file is
// parsed as a CSV table and attached as the Result's first Table.
func ReadResults(dir string) ([]*model.Result, error) {
	bases, err := metaDataPairs(dir)
	if err != nil {
		return nil, err
	}

	var results []*model.Result
	for _, base := range bases {
		res, err := readOneResult(dir, base)
		if err != nil {
			return nil, fmt.Errorf("workspace: read result %s: %w", base, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func readOneResult(dir, base string) (*model.Result, error) {
	metaFile, err := os.Open(filepath.Join(dir, base+".meta"))
	if err != nil {
		return nil, err
	}
	defer metaFile.Close()

	res, err := parseMeta(metaFile)
	if err != nil {
		return nil, err
	}

	dataFile, err := os.Open(filepath.Join(dir, base+".data"))
	if err != nil {
		return nil, err
	}
	defer dataFile.Close()

	table, err := parseDataTable(dataFile)
	if err != nil {
		return nil, err
	}
	res.Tables = []model.Table{table}
	return res, nil
}

// parseMeta reconstitutes a Result's scalar fields, options and tags
// from a meta file's key-value stream. Option triples are grouped by
// the run of option-id/option-name/option-value lines that follows
// each option-id; a following option-id (or any non-option key)
// closes the current option.
func parseMeta(r io.Reader) (*model.Result, error) {
	cr := csvcodec.NewReader(r, metaDelim)
	res := &model.Result{}

	var current *model.Option
	closeOption := func() {
		if current != nil {
			res.Options = append(res.Options, *current)
			current = nil
		}
	}

	for {
		key, value, ok, err := cr.KeyValue()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if key == "" {
			continue
		}
		switch key {
		case "magic":
			// product identity line; not modeled on Result
		case "schedule":
			closeOption()
			res.Schedule = value
		case "action":
			closeOption()
			res.Action = value
		case "task":
			closeOption()
			res.Task = value
		case "option-id":
			closeOption()
			current = &model.Option{ID: value}
		case "option-name":
			if current != nil {
				v := value
				current.Name = &v
			}
		case "option-value":
			if current != nil {
				v := value
				current.Value = &v
			}
		case "tag":
			closeOption()
			res.Tags = append(res.Tags, value)
		case "event":
			closeOption()
			if t, err := parseEpoch(value); err == nil {
				res.Event = t
			}
		case "start":
			closeOption()
			if t, err := parseEpoch(value); err == nil {
				res.Start = t
			}
		case "cycle-number":
			closeOption()
			if t, err := parseCycleNumber(value); err == nil {
				res.CycleNumber = &t
			}
		case "end":
			closeOption()
			if t, err := parseEpoch(value); err == nil {
				res.End = t
			}
		case "status":
			closeOption()
			if n, err := strconv.Atoi(value); err == nil {
				res.Status = n
			}
		default:
			closeOption()
		}
	}
	closeOption()
	return res, nil
}

func parseEpoch(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(n, 0).UTC(), nil
}

// parseCycleNumber parses the YYYYMMDD.HHMMSS layout written by formatCycleNumber.
func parseCycleNumber(s string) (time.Time, error) {
	return time.Parse("20060102.150405", s)
}

// parseDataTable reads a `.data` file as an RFC-4180 table, one Row
// per line, using the comma delimiter conventional for data files
// (meta files use ";"; data is the Task's own CSV output, §4.1).
func parseDataTable(r io.Reader) (model.Table, error) {
	cr := csvcodec.NewReader(r, ',')
	var table model.Table

	for {
		var row model.Row
		sawAny := false
		for {
			field, more, err := cr.Field()
			if err == io.EOF {
				if sawAny {
					table.Rows = append(table.Rows, row)
				}
				return table, nil
			}
			if err != nil {
				return table, err
			}
			sawAny = true
			row.Values = append(row.Values, model.Value(field))
			if !more {
				break
			}
		}
		if sawAny && !(len(row.Values) == 1 && strings.TrimSpace(string(row.Values[0])) == "") {
			table.Rows = append(table.Rows, row)
		}
	}
}
