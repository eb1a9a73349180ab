package trackers

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultCalibrationFile is the calibration table used when none is configured
const DefaultCalibrationFile = "ViveTrackers_Calibrations.csv"

// ErrCalibrationFileNotFound is returned when loading from a calibration file that does not exist
var ErrCalibrationFileNotFound = errors.New("calibration file not found")

var calibrationHeader = []string{"Name", "qx", "qy", "qz", "qw"}

// CalibrationRecord is a captured calibration offset of the tracker with the given display name
type CalibrationRecord struct {
	Name   string
	Offset Quaternion
}

// CalibrationStore persists calibration records
type CalibrationStore interface {
	// SaveCalibrations replaces the stored records and returns how many were actually stored
	SaveCalibrations(records []CalibrationRecord) (int, error)
	// LoadCalibrations returns the stored records and the number of malformed entries that were skipped
	LoadCalibrations() ([]CalibrationRecord, int, error)
}

// WriteCalibrations writes records as a ';' delimited table with a "Name;qx;qy;qz;qw" header.
// Records whose name cannot be stored in the table (empty, containing ';' or a line break, starting with '#')
// or whose offset is not finite are skipped. It returns the number of records written.
func WriteCalibrations(w io.Writer, records []CalibrationRecord) (int, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(calibrationHeader, ";") + "\n"); err != nil {
		return 0, errors.Wrap(err, "Can't write calibration header")
	}
	written := 0
	for _, record := range records {
		if !isStorableName(record.Name) || !record.Offset.IsFinite() {
			continue
		}
		fields := []string{
			record.Name,
			formatFloat(record.Offset.X),
			formatFloat(record.Offset.Y),
			formatFloat(record.Offset.Z),
			formatFloat(record.Offset.W),
		}
		if _, err := bw.WriteString(strings.Join(fields, ";") + "\n"); err != nil {
			return written, errors.Wrapf(err, "Can't write calibration of tracker '%s'", record.Name)
		}
		written++
	}
	if err := bw.Flush(); err != nil {
		return written, errors.Wrap(err, "Can't flush calibrations")
	}
	return written, nil
}

// ReadCalibrations parses a calibration table. The delimiter (';' or ',') is detected from the header line.
// Lines starting with '#' are comments. Malformed lines are skipped and counted.
func ReadCalibrations(r io.Reader) ([]CalibrationRecord, int, error) {
	records := make([]CalibrationRecord, 0)
	malformed, err := readDelimitedTable(r, func(fields []string) bool {
		if len(fields) < len(calibrationHeader) || fields[0] == "" {
			return false
		}
		var q [4]float64
		for i := range q {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return false
			}
			q[i] = v
		}
		offset := NewQuaternion(q[0], q[1], q[2], q[3])
		if !offset.IsFinite() || offset.Norm() == 0 {
			return false
		}
		records = append(records, CalibrationRecord{Name: fields[0], Offset: offset.Normalized()})
		return true
	})
	if err != nil {
		return nil, malformed, errors.Wrap(err, "Can't read calibrations")
	}
	return records, malformed, nil
}

// CalibrationFile stores calibrations in a delimited text file
type CalibrationFile struct {
	path string
}

// NewCalibrationFileDefault creates a store backed by DefaultCalibrationFile
func NewCalibrationFileDefault() *CalibrationFile {
	return NewCalibrationFile(DefaultCalibrationFile)
}

// NewCalibrationFile creates a store backed by the file at path
func NewCalibrationFile(path string) *CalibrationFile {
	return &CalibrationFile{
		path: path,
	}
}

// GetPath returns the file path
func (store *CalibrationFile) GetPath() string {
	return store.path
}

// SaveCalibrations overwrites the file with records. Records WriteCalibrations can't store are not counted
func (store *CalibrationFile) SaveCalibrations(records []CalibrationRecord) (int, error) {
	file, err := os.Create(store.path)
	if err != nil {
		return 0, errors.Wrapf(err, "Can't create calibration file '%s'", store.path)
	}
	written, err := WriteCalibrations(file, records)
	if err != nil {
		file.Close()
		return 0, err
	}
	if err = file.Close(); err != nil {
		return 0, errors.Wrapf(err, "Can't close calibration file '%s'", store.path)
	}
	return written, nil
}

// LoadCalibrations reads the file. ErrCalibrationFileNotFound is returned when it does not exist
func (store *CalibrationFile) LoadCalibrations() ([]CalibrationRecord, int, error) {
	file, err := os.Open(store.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, errors.Wrap(ErrCalibrationFileNotFound, store.path)
		}
		return nil, 0, errors.Wrapf(err, "Can't open calibration file '%s'", store.path)
	}
	defer file.Close()
	return ReadCalibrations(file)
}

// readDelimitedTable calls row for every data line of a header-first delimited table.
// The header picks the delimiter. Blank lines and lines starting with '#' are ignored.
// It returns the number of lines rejected by row.
func readDelimitedTable(r io.Reader, row func(fields []string) bool) (int, error) {
	scanner := bufio.NewScanner(r)
	separator := ""
	rejected := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if separator == "" {
			separator = detectSeparator(line)
			continue
		}
		fields := strings.Split(line, separator)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if !row(fields) {
			rejected++
		}
	}
	if err := scanner.Err(); err != nil {
		return rejected, err
	}
	return rejected, nil
}

func detectSeparator(header string) string {
	if strings.Contains(header, ";") {
		return ";"
	}
	return ","
}

// isStorableName reports whether name survives a write/read cycle of a ';' delimited table
func isStorableName(name string) bool {
	return name != "" &&
		name == strings.TrimSpace(name) &&
		!strings.ContainsAny(name, ";\r\n") &&
		!strings.HasPrefix(name, "#")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
