// Package replay provides a tracker device source reading recorded samples from a delimited table.
//
// Table layout (';' delimited, header required, '#' comments allowed):
//
//	Tick;Index;Serial;Connected;PoseValid;OpticallyTracked;px;py;pz;qx;qy;qz;qw
//	0;1;LHR-5850D511;1;1;1;0.1;1.2;0.3;0;0;0;1
//	0;2;LHR-9A3F0C12;1;0;0;0;0;0;0;0;0;0
//
// Every Poll returns the rows of the next tick. Ticks without rows report no device at all.
package replay

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/LdDl/vive-trackers-go/trackers"
)

// Header is the expected column layout
var Header = []string{"Tick", "Index", "Serial", "Connected", "PoseValid", "OpticallyTracked", "px", "py", "pz", "qx", "qy", "qz", "qw"}

// Source replays recorded device samples tick by tick
type Source struct {
	devices []trackers.DeviceInfo
	ticks   map[int]map[uint32]trackers.RawSample
	first   int
	last    int
	// Next tick returned by Poll
	next int
}

// Open reads the replay table at path
func Open(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open replay file '%s'", path)
	}
	defer file.Close()
	source, err := Read(file)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read replay file '%s'", path)
	}
	return source, nil
}

// Read parses a replay table
func Read(r io.Reader) (*Source, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.Comment = '#'
	reader.FieldsPerRecord = len(Header)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("empty replay table")
		}
		return nil, errors.Wrap(err, "Can't read header")
	}
	for i, column := range Header {
		if !strings.EqualFold(strings.TrimSpace(header[i]), column) {
			return nil, errors.Errorf("Unexpected column %d: expected '%s', got '%s'", i+1, column, header[i])
		}
	}

	source := &Source{
		devices: make([]trackers.DeviceInfo, 0),
		ticks:   make(map[int]map[uint32]trackers.RawSample),
	}
	seen := make(map[trackers.DeviceInfo]struct{})
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "Can't read row")
		}
		line, _ := reader.FieldPos(0)
		tick, device, sample, err := parseRow(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad row at line %d", line)
		}
		if len(source.ticks) == 0 || tick < source.first {
			source.first = tick
		}
		if len(source.ticks) == 0 || tick > source.last {
			source.last = tick
		}
		rows, ok := source.ticks[tick]
		if !ok {
			rows = make(map[uint32]trackers.RawSample)
			source.ticks[tick] = rows
		}
		if _, ok := rows[device.Index]; ok {
			return nil, errors.Errorf("Duplicate device index %d at tick %d (line %d)", device.Index, tick, line)
		}
		rows[device.Index] = sample
		if _, ok := seen[device]; !ok {
			seen[device] = struct{}{}
			source.devices = append(source.devices, device)
		}
	}
	sort.SliceStable(source.devices, func(i, j int) bool {
		return source.devices[i].Index < source.devices[j].Index
	})
	source.next = source.first
	return source, nil
}

func parseRow(fields []string) (int, trackers.DeviceInfo, trackers.RawSample, error) {
	var sample trackers.RawSample
	var device trackers.DeviceInfo
	tick, err := strconv.Atoi(fields[0])
	if err != nil || tick < 0 {
		return 0, device, sample, errors.Errorf("bad tick '%s'", fields[0])
	}
	index, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, device, sample, errors.Wrapf(err, "bad device index '%s'", fields[1])
	}
	device = trackers.DeviceInfo{Index: uint32(index), Serial: strings.TrimSpace(fields[2])}

	flags := make([]bool, 3)
	for i := range flags {
		if flags[i], err = strconv.ParseBool(fields[3+i]); err != nil {
			return 0, device, sample, errors.Wrapf(err, "bad %s flag '%s'", Header[3+i], fields[3+i])
		}
	}
	values := make([]float64, 7)
	for i := range values {
		if values[i], err = strconv.ParseFloat(fields[6+i], 64); err != nil {
			return 0, device, sample, errors.Wrapf(err, "bad %s value '%s'", Header[6+i], fields[6+i])
		}
	}
	sample = trackers.RawSample{
		Connected:        flags[0],
		PoseValid:        flags[1],
		OpticallyTracked: flags[2],
		Position:         trackers.NewVec3(values[0], values[1], values[2]),
		Rotation:         trackers.NewQuaternion(values[3], values[4], values[5], values[6]),
	}
	return tick, device, sample, nil
}

// Scan reports every distinct (index, serial) pair of the table sorted by index
func (source *Source) Scan() ([]trackers.DeviceInfo, error) {
	devices := make([]trackers.DeviceInfo, len(source.devices))
	copy(devices, source.devices)
	return devices, nil
}

// Poll returns the samples of the next tick keyed by device index. It returns io.EOF after the last tick
func (source *Source) Poll() (map[uint32]trackers.RawSample, error) {
	if source.Done() {
		return nil, io.EOF
	}
	rows := source.ticks[source.next]
	source.next++
	samples := make(map[uint32]trackers.RawSample, len(rows))
	for index, sample := range rows {
		samples[index] = sample
	}
	return samples, nil
}

// Tick returns the tick the next Poll will return
func (source *Source) Tick() int {
	return source.next
}

// Done returns whether every tick was polled
func (source *Source) Done() bool {
	return len(source.ticks) == 0 || source.next > source.last
}

// Len returns the number of ticks from the first to the last one
func (source *Source) Len() int {
	if len(source.ticks) == 0 {
		return 0
	}
	return source.last - source.first + 1
}

// Rewind restarts the replay from the first tick
func (source *Source) Rewind() {
	source.next = source.first
}
