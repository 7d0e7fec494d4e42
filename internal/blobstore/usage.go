package blobstore

import (
	"context"

	"github.com/shirou/gopsutil/v3/disk"

	apperrors "github.com/tessro/encore/internal/errors"
)

// diskUsage builds a Usage whose quota is used plus the free space on the
// filesystem holding dir.
func diskUsage(ctx context.Context, dir string, used uint64) (Usage, error) {
	stat, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return Usage{UsedBytes: used}, apperrors.Storage("disk usage", err)
	}
	return Usage{UsedBytes: used, QuotaBytes: used + stat.Free}, nil
}
