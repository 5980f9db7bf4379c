//go:build windows

package volumes

import (
	"golang.org/x/sys/windows"
)

// listVolumes walks the logical drive strings ("C:\", "D:\", ...) and
// classifies each one with GetDriveType. A drive counts as ready when its
// volume information can be read; empty card readers and optical drives
// without media fail that call.
func listVolumes() ([]Volume, error) {
	buf := make([]uint16, 254)
	n, err := windows.GetLogicalDriveStrings(uint32(len(buf)), &buf[0])
	if err != nil {
		return nil, err
	}
	if int(n) > len(buf) {
		buf = make([]uint16, n)
		n, err = windows.GetLogicalDriveStrings(uint32(len(buf)), &buf[0])
		if err != nil {
			return nil, err
		}
	}

	var vols []Volume
	for _, root := range splitDriveStrings(buf[:n]) {
		ptr, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		v := Volume{
			Root: root,
			Kind: driveKind(windows.GetDriveType(ptr)),
		}

		fsName := make([]uint16, windows.MAX_PATH+1)
		err = windows.GetVolumeInformation(ptr, nil, 0, nil, nil, nil, &fsName[0], uint32(len(fsName)))
		if err == nil {
			v.Ready = true
			v.FSType = windows.UTF16ToString(fsName)
		}
		vols = append(vols, v)
	}
	return vols, nil
}

func splitDriveStrings(buf []uint16) []string {
	var roots []string
	start := 0
	for i, c := range buf {
		if c != 0 {
			continue
		}
		if i > start {
			roots = append(roots, windows.UTF16ToString(buf[start:i]))
		}
		start = i + 1
	}
	return roots
}

func driveKind(t uint32) Kind {
	switch t {
	case windows.DRIVE_FIXED:
		return KindFixed
	case windows.DRIVE_REMOVABLE:
		return KindRemovable
	case windows.DRIVE_REMOTE:
		return KindNetwork
	case windows.DRIVE_CDROM:
		return KindOptical
	case windows.DRIVE_RAMDISK:
		return KindRAM
	case windows.DRIVE_NO_ROOT_DIR:
		return KindNoRoot
	default:
		return KindUnknown
	}
}
