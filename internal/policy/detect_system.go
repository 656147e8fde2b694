package policy

import (
	"regexp"
	"strings"
)

var (
	diskWipers = commandRe(`shred`, `wipe`, `scrub`, `blkdiscard`, `wipefs`, `srm`)

	blockDevice = `/dev/(?:sd|hd|nvme|vd|xvd|mmcblk|disk|rdisk|md|dm-|loop)`

	rawDeviceWrites = []*regexp.Regexp{
		regexp.MustCompile(`>\s*` + blockDevice),
		regexp.MustCompile(`\bof=` + blockDevice),
		regexp.MustCompile(`\b(?:cp|mv)\s+.*\s` + blockDevice),
		regexp.MustCompile(blockDevice + `\w*\s*<`),
		regexp.MustCompile(`\btee\s+(?:-\S+\s+)*` + blockDevice),
	}

	filesystemFormatters = commandRe(`mkfs(?:\.\w+)?`, `mke2fs`, `mkswap`, `mkdosfs`, `mkvfat`, `newfs(?:_\w+)?`)

	partitionTools = commandRe(`fdisk`, `sfdisk`, `cfdisk`, `gdisk`, `sgdisk`, `parted`, `gparted`, `partprobe`, `partx`)

	bootloaderTools = commandRe(`grub2?-install`, `update-grub2?`, `grub2?-mkconfig`, `efibootmgr`, `bootctl`, `lilo`)
)

// ddSafeRoots are the absolute locations dd may write to.
var ddSafeRoots = []string{"/tmp", "/var/tmp", "/home", "/users"}

func systemDetectors() []Detector {
	return []Detector{
		patternDetector("disk-wipe", CategorySystemOperation, diskWipers),
		patternDetector("raw-device-write", CategorySystemOperation, rawDeviceWrites...),
		patternDetector("filesystem-format", CategorySystemOperation, filesystemFormatters),
		patternDetector("partition-tool", CategorySystemOperation, partitionTools),
		patternDetector("bootloader-tool", CategorySystemOperation, bootloaderTools),
		bashDetector("dd-system-output", CategorySystemOperation, isDangerousDd),
	}
}

// isDangerousDd flags dd whose of= target is an absolute path outside the
// temporary and home trees, or climbs out of the working directory.
func isDangerousDd(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		if c.name != "dd" {
			return false
		}
		for _, a := range c.args {
			if !strings.HasPrefix(strings.ToLower(a), "of=") {
				continue
			}
			target := a[len("of="):]
			if hasParentRef(target) {
				return true
			}
			if !strings.HasPrefix(target, "/") {
				continue
			}
			safe := false
			lower := strings.ToLower(cleanTarget(target))
			for _, root := range ddSafeRoots {
				if pathUnder(lower, root) {
					safe = true
					break
				}
			}
			if !safe {
				return true
			}
		}
		return false
	})
}
