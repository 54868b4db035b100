package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDataPartition(t *testing.T) {
	tests := []struct {
		name string
		part Partition
		want bool
	}{
		{"ext4 data mount", Partition{Device: "/dev/sda1", Mountpoint: "/data", Fstype: "ext4"}, true},
		{"root filesystem", Partition{Device: "/dev/nvme0n1p2", Mountpoint: "/", Fstype: "ext4"}, true},
		{"proc", Partition{Device: "proc", Mountpoint: "/proc", Fstype: "proc"}, false},
		{"boot partition", Partition{Device: "/dev/sda2", Mountpoint: "/boot/efi", Fstype: "vfat"}, false},
		{"tmpfs on data path", Partition{Device: "tmpfs", Mountpoint: "/mnt/scratch", Fstype: "tmpfs"}, false},
		{"loop device", Partition{Device: "/dev/loop3", Mountpoint: "/snap/core/1234", Fstype: "squashfs"}, false},
		{"docker overlay", Partition{Device: "overlay", Mountpoint: "/var/lib/docker/overlay2/abc", Fstype: "overlay"}, false},
		{"macOS recovery", Partition{Device: "/dev/disk1s3", Mountpoint: "/Volumes/Recovery", Fstype: "apfs"}, false},
		{"usb drive", Partition{Device: "/dev/sdb1", Mountpoint: "/mnt/usb", Fstype: "exfat"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDataPartition(tt.part))
		})
	}
}
