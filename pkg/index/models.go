// Package index is C2: a persistent relational index store, one
// SQLite file per archive, holding the files/checkpoints/metadata
// schema that the original indexer's SQL_SCHEMA constant defines
// (translated to gorm model tags rather than transliterated SQL).
package index

// fileRow is the files table: one row per indexed archive, unique on
// logical_name.
type fileRow struct {
	ID          int64  `gorm:"primaryKey"`
	LogicalName string `gorm:"uniqueIndex;not null"`
	ByteSize    int64  `gorm:"not null"`
	ModTimeUnix int64  `gorm:"column:mtime_unix;not null"`
	SHA256Hex   string `gorm:"not null"`
}

func (fileRow) TableName() string { return "files" }

// checkpointRow is the checkpoints table, indexed on (file_id,
// checkpoint_idx) and (file_id, uc_offset). NearestCheckpoint does not
// query it: it searches the rows LoadCheckpoints returns, in memory.
type checkpointRow struct {
	ID             int64  `gorm:"primaryKey"`
	FileID         int64  `gorm:"column:file_id;not null;index:checkpoints_file_idx,priority:1;index:checkpoints_file_uc_off_idx,priority:1"`
	CheckpointIdx  int64  `gorm:"column:checkpoint_idx;not null;index:checkpoints_file_idx,priority:2"`
	UCOffset       int64  `gorm:"column:uc_offset;not null;index:checkpoints_file_uc_off_idx,priority:2"`
	UCSize         int64  `gorm:"column:uc_size;not null"`
	COffset        int64  `gorm:"column:c_offset;not null"`
	CSize          int64  `gorm:"column:c_size;not null"`
	Bits           int64  `gorm:"not null"`
	DictCompressed []byte `gorm:"column:dict_compressed;not null"`
	NumLines       int64  `gorm:"column:num_lines;not null"`
}

func (checkpointRow) TableName() string { return "checkpoints" }

// metadataRow is the metadata table: one row per file, keyed by
// file_id.
type metadataRow struct {
	FileID         int64 `gorm:"column:file_id;primaryKey"`
	CheckpointSize int64 `gorm:"column:checkpoint_size;not null"`
	TotalLines     int64 `gorm:"column:total_lines;not null;default:0"`
	TotalUCSize    int64 `gorm:"column:total_uc_size;not null;default:0"`
	HeaderLen      int64 `gorm:"column:header_len;not null;default:0"`
}

func (metadataRow) TableName() string { return "metadata" }

// tarMemberRow is tar_members: the C1/tar-in-gzip member boundary
// table ([MODULE: tarindex]), absent from the original schema but
// additive to it the same way the other tables are keyed off file_id.
type tarMemberRow struct {
	ID            int64  `gorm:"primaryKey"`
	FileID        int64  `gorm:"column:file_id;not null;index:tar_members_file_idx,priority:1"`
	Name          string `gorm:"not null"`
	UCStartOffset int64  `gorm:"column:uc_start_offset;not null;index:tar_members_file_idx,priority:2"`
	UCLength      int64  `gorm:"column:uc_length;not null"`
}

func (tarMemberRow) TableName() string { return "tar_members" }
