package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kaireichart/vor-nav-display/display"
)

const (
	stationsSheet = "Stations"
	trackSheet    = "Track"
)

var stationsHeader = []string{"Name", "ID", "Frequency", "Bearing", "Distance", "Identified"}
var trackHeader = []string{"Index", "Latitude", "Longitude"}

// Filename returns a timestamped download name for a view export.
func Filename(ext string, now time.Time) string {
	return fmt.Sprintf("vornav_%s.%s", now.Format("20060102_150405"), ext)
}

// XLSX writes the view's station table and position history as a
// two-sheet workbook.
func XLSX(v display.View) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", stationsSheet); err != nil {
		return nil, fmt.Errorf("failed to name stations sheet: %w", err)
	}
	if _, err := f.NewSheet(trackSheet); err != nil {
		return nil, fmt.Errorf("failed to create track sheet: %w", err)
	}

	if err := f.SetSheetRow(stationsSheet, "A1", toRow(stationsHeader)); err != nil {
		return nil, fmt.Errorf("failed to write stations header: %w", err)
	}
	for i, row := range stationRows(v) {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(stationsSheet, cell, toRow(row)); err != nil {
			return nil, fmt.Errorf("failed to write station row: %w", err)
		}
	}

	if err := f.SetSheetRow(trackSheet, "A1", toRow(trackHeader)); err != nil {
		return nil, fmt.Errorf("failed to write track header: %w", err)
	}
	for i, c := range v.History {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(trackSheet, cell, &[]any{i, c.Lat, c.Lon}); err != nil {
			return nil, fmt.Errorf("failed to write track row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

// CSVZip writes the same data as XLSX as two CSV files in a ZIP archive.
func CSVZip(v display.View) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	stations, err := generateCSV(stationsHeader, stationRows(v))
	if err != nil {
		return nil, fmt.Errorf("failed to generate stations CSV: %w", err)
	}
	track, err := generateCSV(trackHeader, trackRows(v))
	if err != nil {
		return nil, fmt.Errorf("failed to generate track CSV: %w", err)
	}

	for name, data := range map[string][]byte{"stations.csv": stations, "track.csv": track} {
		fw, err := w.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s in zip: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}
	return buf, nil
}

func generateCSV(header []string, rows [][]string) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return buf.Bytes(), nil
}

func stationRows(v display.View) [][]string {
	rows := make([][]string, 0, len(v.Stations))
	for _, s := range v.Stations {
		identified := ""
		if s.Identified != nil {
			identified = strconv.FormatBool(*s.Identified)
		}
		rows = append(rows, []string{s.Name, s.ID, s.Frequency, s.BearingText, s.DistanceText, identified})
	}
	return rows
}

func trackRows(v display.View) [][]string {
	rows := make([][]string, 0, len(v.History))
	for i, c := range v.History {
		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.FormatFloat(c.Lat, 'f', -1, 64),
			strconv.FormatFloat(c.Lon, 'f', -1, 64),
		})
	}
	return rows
}

func toRow(cells []string) *[]any {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return &row
}
