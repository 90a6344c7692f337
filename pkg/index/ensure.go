package index

import (
	"context"
	"io"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dftracer-utils/traceindex/pkg/archivesrc"
	"github.com/dftracer-utils/traceindex/pkg/checkpoint"
	"github.com/dftracer-utils/traceindex/pkg/common"
	"github.com/dftracer-utils/traceindex/pkg/format"
	"github.com/dftracer-utils/traceindex/pkg/tarindex"
	"github.com/dftracer-utils/traceindex/pkg/tracelog"
)

var buildGroup singleflight.Group

// Handle bundles everything a reader needs for one archive: its
// source, its format, and the checkpoint/metadata/tar-member state
// loaded (or just built) from the persistent index.
type Handle struct {
	Source      archivesrc.Source
	Format      common.Format
	ArchiveMeta common.ArchiveHandle
	Checkpoints []common.CheckpointRecord
	Metadata    common.IndexMetadata
	TarMembers  []common.TarMember
	Members     *tarindex.MemberIndex // nil for plain-gzip archives
}

// EnsureIndex opens archivePath through archivesrc, opens (or creates)
// its persistent index at archivePath+format's IndexExtension, and
// rebuilds the index if it is missing or stale (spec §4/§7,
// StaleIndex). Concurrent callers for the same archivePath within this
// process share one build via singleflight; across processes, an
// flock on the index path serializes the rebuild itself, mirroring how
// the teacher's archive build step guards its own on-disk state.
func EnsureIndex(ctx context.Context, archivePath string, opts checkpoint.Options) (*Handle, error) {
	v, err, _ := buildGroup.Do(archivePath, func() (any, error) {
		return ensureIndexOnce(ctx, archivePath, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func ensureIndexOnce(ctx context.Context, archivePath string, opts checkpoint.Options) (*Handle, error) {
	src, err := archivesrc.Open(ctx, archivePath)
	if err != nil {
		return nil, err
	}

	sniff := make([]byte, 512+2)
	n, _ := src.ReadAt(sniff, 0)
	fmtKind, err := format.Detect(newByteReader(sniff[:n]))
	if err != nil {
		src.Close()
		return nil, err
	}

	indexPath := archivePath + fmtKind.IndexExtension()

	fileLock := flock.New(indexPath + ".lock")
	locked, err := fileLock.TryLockContext(ctx, defaultLockRetry)
	if err != nil || !locked {
		src.Close()
		return nil, common.Wrap(common.CategoryIoError, "acquire index build lock for "+indexPath, err)
	}
	defer fileLock.Unlock()

	store, err := Open(indexPath)
	if err != nil {
		src.Close()
		return nil, err
	}

	current := common.ArchiveHandle{
		LogicalName: archivePath,
		ByteSize:    src.Size(),
		ModTimeUnix: src.ModTime().Unix(),
	}

	stored, ok, err := store.LoadHandle(archivePath)
	if err != nil {
		store.Close()
		src.Close()
		return nil, err
	}

	if ok {
		sha, err := hashSource(src)
		if err != nil {
			store.Close()
			src.Close()
			return nil, err
		}
		current.SHA256Hex = sha

		if IsFresh(stored, current) {
			cps, err := store.LoadCheckpoints(archivePath)
			if err != nil {
				store.Close()
				src.Close()
				return nil, err
			}
			meta, err := store.LoadMetadata(archivePath)
			if err != nil {
				store.Close()
				src.Close()
				return nil, err
			}
			members, err := store.LoadTarMembers(archivePath)
			if err != nil {
				store.Close()
				src.Close()
				return nil, err
			}
			store.Close()
			return &Handle{
				Source:      src,
				Format:      fmtKind,
				ArchiveMeta: stored,
				Checkpoints: cps,
				Metadata:    meta,
				TarMembers:  members,
				Members:     memberIndex(fmtKind, members),
			}, nil
		}
	}

	buildID := uuid.New().String()
	tracelog.Logger().Info().Str("build_id", buildID).Str("archive", archivePath).Msg("rebuilding archive index")

	result, err := checkpoint.Build(ctx, archivePath, current.ByteSize, current.ModTimeUnix, io.NewSectionReader(src, 0, current.ByteSize), opts)
	if err != nil {
		store.Close()
		src.Close()
		return nil, err
	}

	var members []common.TarMember
	if fmtKind == common.FormatTarGz {
		members, err = tarindex.Scan(io.NewSectionReader(src, 0, current.ByteSize))
		if err != nil {
			store.Close()
			src.Close()
			return nil, err
		}
	}

	if err := store.Rebuild(result.Handle, result.Checkpoints, result.Metadata, members); err != nil {
		store.Close()
		src.Close()
		return nil, err
	}
	store.Close()

	tracelog.Logger().Info().Str("build_id", buildID).Int("checkpoints", len(result.Checkpoints)).Msg("archive index rebuilt")

	return &Handle{
		Source:      src,
		Format:      fmtKind,
		ArchiveMeta: result.Handle,
		Checkpoints: result.Checkpoints,
		Metadata:    result.Metadata,
		TarMembers:  members,
		Members:     memberIndex(fmtKind, members),
	}, nil
}

func memberIndex(fmtKind common.Format, members []common.TarMember) *tarindex.MemberIndex {
	if fmtKind != common.FormatTarGz {
		return nil
	}
	return tarindex.NewMemberIndex(members)
}
