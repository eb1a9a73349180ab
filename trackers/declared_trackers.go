package trackers

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// DefaultDeclaredTrackersFile is the declared trackers table used when none is configured
const DefaultDeclaredTrackersFile = "ViveTrackers.csv"

// ErrDeclaredTrackersFileNotFound is returned when the declared trackers file does not exist
var ErrDeclaredTrackersFileNotFound = errors.New("declared trackers file not found")

// ReadDeclaredTrackers parses a "SerialNumber;Name;" table into a serial -> display name map.
// Example:
//
//	SerialNumber;Name;
//	LHR-5850D511;A;
//	#LHR-3CECF391;C;
//
// Lines with an empty serial or name are skipped and counted. When a serial is declared twice, the first declaration wins.
func ReadDeclaredTrackers(r io.Reader) (map[string]string, int, error) {
	declared := make(map[string]string)
	malformed, err := readDelimitedTable(r, func(fields []string) bool {
		if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
			return false
		}
		if _, ok := declared[fields[0]]; ok {
			return false
		}
		declared[fields[0]] = fields[1]
		return true
	})
	if err != nil {
		return nil, malformed, errors.Wrap(err, "Can't read declared trackers")
	}
	return declared, malformed, nil
}

// LoadDeclaredTrackers reads the declared trackers table at path
func LoadDeclaredTrackers(path string) (map[string]string, int, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, errors.Wrap(ErrDeclaredTrackersFileNotFound, path)
		}
		return nil, 0, errors.Wrapf(err, "Can't open declared trackers file '%s'", path)
	}
	defer file.Close()
	return ReadDeclaredTrackers(file)
}
