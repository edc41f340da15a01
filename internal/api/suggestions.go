package api

import (
	"regexp"
	"strings"
)

// MaxSuggestions caps the hints attached to an error.
const MaxSuggestions = 4

type suggestionRule struct {
	command string // empty matches every command
	needles []string
	pattern *regexp.Regexp // optional, matched against the lowered message
	hints   func(message string) []string
}

func fixed(hints ...string) func(string) []string {
	return func(string) []string { return hints }
}

var quotedName = regexp.MustCompile(`'([^']+)'`)

// Needles cover the server's Spanish messages and their English equivalents.
var suggestionRules = []suggestionRule{
	{
		command: "fdisk",
		needles: []string{"no hay espacio suficiente", "not enough space"},
		hints: fixed(
			"Check the free space of the disk",
			"Create a larger disk: mkdisk -size=5000 -unit=M -path=/path/big_disk.mia",
			"Remove unused partitions",
		),
	},
	{
		command: "fdisk",
		needles: []string{"partición extendida", "extended partition"},
		hints: fixed(
			"Create a primary partition: fdisk -size=300 -unit=M -path=/path/disk.mia -name=Primary1",
			"Reduce the partition size: fdisk -size=100 -unit=M -path=/path/disk.mia -name=Small1",
		),
	},
	{
		command: "mount",
		needles: []string{"no se encontró una partición", "partition not found"},
		pattern: regexp.MustCompile(`partition '[^']*' not found`),
		hints: func(message string) []string {
			name := "NewPartition"
			if m := quotedName.FindStringSubmatch(message); m != nil {
				name = m[1]
			}
			return []string{
				"Check the exact partition name",
				"Create the missing partition: fdisk -size=300 -unit=M -path=/path/disk.mia -name=" + name,
			}
		},
	},
	{
		command: "mount",
		needles: []string{"ya está montada", "already mounted"},
		hints: fixed(
			"List mounted partitions: mounted",
			"Use a different mount id",
		),
	},
	{
		command: "mount",
		needles: []string{"solo se pueden montar particiones primarias", "only primary partitions"},
		hints: fixed(
			"Create a primary partition: fdisk -size=300 -unit=M -path=/path/disk.mia -name=Primary1",
			"Check the partition type",
		),
	},
	{
		command: "mkdisk",
		needles: []string{"ya existe", "file exists", "already exists"},
		hints: fixed(
			"Use a different name: mkdisk -size=1000 -unit=M -path=/path/new_disk.mia",
			"Remove the existing disk: rmdisk -path=/path/disk.mia",
		),
	},
	{
		command: "mkdisk",
		needles: []string{"espacio insuficiente", "no space"},
		hints: fixed(
			"Create a smaller disk: mkdisk -size=500 -unit=M -path=/path/disk.mia",
			"Use a different location: mkdisk -size=1000 -unit=M -path=/tmp/disk.mia",
		),
	},
	{
		needles: []string{"no such file", "no existe"},
		hints: fixed(
			"Create the missing directories: mkdir -p -path=/full/path",
			"Check that the path is absolute",
		),
	},
	{
		needles: []string{"permission denied", "permisos"},
		hints: fixed(
			"Check the directory permissions",
			"Use a writable location such as /tmp/disk.mia",
		),
	},
}

// Suggest returns up to MaxSuggestions hints for a failed command, matched
// on the command name and the error message.
func Suggest(command, message string) []string {
	name := ""
	if fields := strings.Fields(command); len(fields) > 0 {
		name = strings.ToLower(fields[0])
	}
	lowered := strings.ToLower(message)

	var out []string
	for _, rule := range suggestionRules {
		if rule.command != "" && rule.command != name {
			continue
		}
		if !rule.matches(lowered) {
			continue
		}
		out = append(out, rule.hints(message)...)
		if len(out) >= MaxSuggestions {
			return out[:MaxSuggestions]
		}
	}
	return out
}

func (r suggestionRule) matches(lowered string) bool {
	if containsAny(lowered, r.needles) {
		return true
	}
	return r.pattern != nil && r.pattern.MatchString(lowered)
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

var notifiableSources = map[string]bool{
	"FDISK":  true,
	"MOUNT":  true,
	"MKDISK": true,
	"MKFS":   true,
	"LOGIN":  true,
	"LOGOUT": true,
}

// Notifiable reports whether stream errors from source deserve a hint.
func Notifiable(source string) bool {
	return notifiableSources[strings.ToUpper(source)]
}
