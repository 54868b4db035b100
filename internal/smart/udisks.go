package smart

import (
	"bufio"
	"strconv"
	"strings"
)

// Object paths and interfaces in udisksctl dump output.
// See https://storaged.org/doc/udisks2-api/latest/
const (
	drivePrefix = "/org/freedesktop/UDisks2/drives/"
	blockPrefix = "/org/freedesktop/UDisks2/block_devices/"

	driveIface    = "org.freedesktop.UDisks2.Drive:"
	driveAtaIface = "org.freedesktop.UDisks2.Drive.Ata:"
	blockIface    = "org.freedesktop.UDisks2.Block:"
	fsIface       = "org.freedesktop.UDisks2.Filesystem:"
	partIface     = "org.freedesktop.UDisks2.Partition:"
)

// DumpDrive is one drive section from udisksctl dump: general drive info
// plus the ATA SMART attributes, both as raw key/value text.
type DumpDrive struct {
	ID   string
	Info map[string]string // org.freedesktop.UDisks2.Drive
	Ata  map[string]string // org.freedesktop.UDisks2.Drive.Ata
}

// DumpBlock is one block-device section from udisksctl dump.
type DumpBlock struct {
	Name        string // object path suffix, e.g. sda1
	Device      string // /dev path from the Block section
	Drive       string // referenced drive id, join key to DumpDrive
	Props       map[string]string
	MountPoints []string
	Symlinks    []string
}

// Dump is the parsed result of one udisksctl dump invocation. Drives are
// keyed by drive id; Blocks preserve dump order.
type Dump struct {
	Drives map[string]*DumpDrive
	Blocks []*DumpBlock
}

// Block returns the block device with the given object-path suffix.
func (d *Dump) Block(name string) *DumpBlock {
	for _, b := range d.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// DriveForBlock resolves a block device to its drive section, the
// explicit join the tool encodes through the Drive property.
func (d *Dump) DriveForBlock(b *DumpBlock) *DumpDrive {
	if b == nil || b.Drive == "" {
		return nil
	}
	return d.Drives[b.Drive]
}

// ParseDump parses udisksctl dump text. The format is a sequence of
// D-Bus object paths, each followed by indented interface headers and
// "Key: value" property lines. Unknown objects, interfaces, and keys are
// skipped; a malformed line never fails the parse.
func ParseDump(text string) *Dump {
	dump := &Dump{Drives: make(map[string]*DumpDrive)}

	var drive *DumpDrive
	var block *DumpBlock
	var section map[string]string
	var lastListKey string

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, drivePrefix):
			drive = &DumpDrive{
				ID:   strings.TrimSuffix(strings.TrimPrefix(line, drivePrefix), ":"),
				Info: make(map[string]string),
				Ata:  make(map[string]string),
			}
			dump.Drives[drive.ID] = drive
			block, section, lastListKey = nil, nil, ""

		case strings.HasPrefix(line, blockPrefix):
			block = &DumpBlock{
				Name:  strings.TrimSuffix(strings.TrimPrefix(line, blockPrefix), ":"),
				Props: make(map[string]string),
			}
			dump.Blocks = append(dump.Blocks, block)
			drive, section, lastListKey = nil, nil, ""

		case !strings.HasPrefix(line, " "):
			// Some other top-level object (Manager, jobs); skip until the
			// next recognized one.
			drive, block, section, lastListKey = nil, nil, nil, ""

		case trimmed == driveIface && drive != nil:
			section = drive.Info
		case trimmed == driveAtaIface && drive != nil:
			section = drive.Ata
		case (trimmed == blockIface || trimmed == fsIface) && block != nil:
			section = block.Props
		case trimmed == partIface && block != nil:
			// Partition-table records carry nothing we report on.
			section = nil

		case section != nil:
			key, val, ok := strings.Cut(trimmed, ":")
			if !ok {
				// Continuation line of a multi-value property.
				appendListValue(block, lastListKey, trimmed)
				continue
			}
			key = strings.TrimSpace(key)
			val = strings.TrimSpace(val)
			switch {
			case block != nil && key == "Drive":
				block.Drive = strings.TrimPrefix(unquote(val), drivePrefix)
			case block != nil && key == "Device" && block.Device == "":
				block.Device = val
				section[key] = val
			case block != nil && (key == "MountPoints" || key == "Symlinks"):
				lastListKey = key
				if val != "" {
					appendListValue(block, key, val)
				}
			default:
				// First write wins so a later section cannot clobber an
				// already-parsed key.
				if _, exists := section[key]; !exists && key != "" {
					section[key] = val
				}
			}
		}
	}

	return dump
}

func appendListValue(block *DumpBlock, key, val string) {
	if block == nil || val == "" {
		return
	}
	switch key {
	case "MountPoints":
		block.MountPoints = append(block.MountPoints, val)
	case "Symlinks":
		block.Symlinks = append(block.Symlinks, val)
	}
}

// unquote strips the single quotes udisksctl places around object-path
// property values.
func unquote(s string) string {
	return strings.Trim(s, "'")
}

// coerceValue converts raw udisksctl property text into a typed value.
// Anything that is not a recognizable bool or number stays a string.
func coerceValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Attributes returns the drive's SMART attribute table with values
// coerced to their natural types. Values stay exactly as the tool
// reports them (SmartTemperature in Kelvin, SmartPowerOnSeconds in
// seconds); normalization to record fields happens in the collector.
func (d *DumpDrive) Attributes() map[string]any {
	if len(d.Ata) == 0 {
		return nil
	}
	out := make(map[string]any, len(d.Ata))
	for k, v := range d.Ata {
		out[k] = coerceValue(v)
	}
	return out
}

// InfoValue returns a typed value from the drive info section, or nil.
func (d *DumpDrive) InfoValue(key string) any {
	v, ok := d.Info[key]
	if !ok {
		return nil
	}
	return coerceValue(v)
}
