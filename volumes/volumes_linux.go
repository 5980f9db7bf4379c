//go:build linux

package volumes

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	mountsFile = "/proc/self/mounts"
	sysBlock   = "/sys/block"
)

var networkFS = map[string]bool{
	"nfs": true, "nfs4": true, "cifs": true, "smbfs": true, "smb3": true,
	"sshfs": true, "fuse.sshfs": true, "9p": true, "afs": true, "ceph": true,
	"glusterfs": true, "fuse.glusterfs": true, "davfs": true, "fuse.rclone": true,
}

var opticalFS = map[string]bool{
	"iso9660": true, "udf": true,
}

var ramFS = map[string]bool{
	"tmpfs": true, "ramfs": true,
}

// Kernel and container plumbing that is never worth watching.
var pseudoFS = map[string]bool{
	"proc": true, "sysfs": true, "devtmpfs": true, "devpts": true, "cgroup": true,
	"cgroup2": true, "mqueue": true, "debugfs": true, "tracefs": true,
	"securityfs": true, "pstore": true, "bpf": true, "autofs": true,
	"configfs": true, "fusectl": true, "hugetlbfs": true, "binfmt_misc": true,
	"squashfs": true, "nsfs": true, "efivarfs": true, "rpc_pipefs": true,
	"selinuxfs": true, "fuse.gvfsd-fuse": true, "fuse.portal": true,
}

func listVolumes() ([]Volume, error) {
	f, err := os.Open(mountsFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMounts(f, sysBlock, statReady)
}

func statReady(path string) error {
	var st unix.Statfs_t
	return unix.Statfs(path, &st)
}

// parseMounts reads mounts in /proc/self/mounts format. Removable block
// devices are detected through <sysRoot>/<dev>/removable; ready is
// decided by stat.
func parseMounts(r io.Reader, sysRoot string, stat func(string) error) ([]Volume, error) {
	var vols []Volume
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		device := fields[0]
		root := unescapeMount(fields[1])
		fsType := fields[2]

		v := Volume{
			Root:   root,
			FSType: fsType,
			Kind:   classify(device, fsType, sysRoot),
		}
		v.Ready = stat(root) == nil
		vols = append(vols, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vols, nil
}

func classify(device, fsType, sysRoot string) Kind {
	switch {
	case pseudoFS[fsType]:
		return KindUnknown
	case networkFS[fsType] || strings.HasPrefix(device, "//"):
		return KindNetwork
	case opticalFS[fsType]:
		return KindOptical
	case ramFS[fsType]:
		return KindRAM
	}
	if strings.HasPrefix(device, "/dev/") {
		name := filepath.Base(device)
		if isRemovable(sysRoot, name) || isRemovable(sysRoot, blockDevice(name)) {
			return KindRemovable
		}
	}
	return KindFixed
}

var partitionSuffix = regexp.MustCompile(`^((?:nvme\d+n\d+)|(?:mmcblk\d+)|(?:[a-z]+?))p?\d+$`)

// blockDevice maps a partition node to its parent disk: sdb1 -> sdb,
// nvme0n1p2 -> nvme0n1, mmcblk0p1 -> mmcblk0.
func blockDevice(name string) string {
	if m := partitionSuffix.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

func isRemovable(sysRoot, dev string) bool {
	data, err := os.ReadFile(filepath.Join(sysRoot, dev, "removable"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// unescapeMount decodes the octal escapes (\040 for space, etc.) used in
// the mounts file.
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
