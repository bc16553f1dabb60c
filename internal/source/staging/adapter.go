// Package staging serves registry records from a local directory, for
// offline runs and replaying captured data.
//
// Layout:
//
//	<base>/makes.jsonl        one {"makeId":..,"name":..} object per line
//	<base>/types/<makeId>.json JSON array of {"typeId":..,"name":..}
package staging

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/vehicle-catalog/internal/logger"
	"github.com/timmy/vehicle-catalog/internal/source"
)

const (
	// IndexFileName is the JSONL make index inside the staging directory.
	IndexFileName = "makes.jsonl"
	// TypesDir holds one vehicle type file per make.
	TypesDir = "types"
)

// Adapter implements source.Source over a staging directory.
type Adapter struct {
	basePath string
}

// NewAdapter creates a staging adapter rooted at basePath.
func NewAdapter(basePath string) *Adapter {
	return &Adapter{basePath: basePath}
}

func (a *Adapter) GetSourceID() string {
	return "staging:" + filepath.Base(a.basePath)
}

// ListMakes reads the index. Malformed lines are logged and skipped; the
// result is ordered by make id.
func (a *Adapter) ListMakes(ctx context.Context) ([]source.MakeRecord, error) {
	const op = "ListMakes"
	indexPath := filepath.Join(a.basePath, IndexFileName)

	file, err := os.Open(indexPath)
	if err != nil {
		return nil, fileError(op, err)
	}
	defer file.Close()

	var makes []source.MakeRecord
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec source.MakeRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			logger.CtxWarn(ctx, "Skipping malformed index line %d in %s: %v", lineNo, indexPath, err)
			continue
		}
		makes = append(makes, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &source.Error{Op: op, Err: fmt.Errorf("read index: %w", err)}
	}

	sort.SliceStable(makes, func(i, j int) bool { return makes[i].MakeID < makes[j].MakeID })
	return makes, nil
}

// FetchVehicleTypes reads types/<makeID>.json. A missing file is a permanent
// not-found failure.
func (a *Adapter) FetchVehicleTypes(ctx context.Context, makeID int64) ([]source.VehicleTypeRecord, error) {
	const op = "FetchVehicleTypes"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(a.basePath, TypesDir, strconv.FormatInt(makeID, 10)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileError(op, err)
	}

	var types []source.VehicleTypeRecord
	if err := json.Unmarshal(data, &types); err != nil {
		return nil, &source.Error{Op: op, Err: fmt.Errorf("%w: %s: %v", source.ErrMalformedPayload, path, err)}
	}
	return types, nil
}

func fileError(op string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &source.Error{Op: op, StatusCode: http.StatusNotFound, Err: err}
	}
	return &source.Error{Op: op, Err: err}
}
