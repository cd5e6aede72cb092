package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/trackerd/trackerd/internal/dbengine"
	"github.com/trackerd/trackerd/internal/ontology"
)

// serviceRow is the subset of a services row Delete/Move need.
type serviceRow struct {
	ID            int64
	Path          string
	Name          string
	ServiceTypeID int64
}

// Delete removes path (and, for a directory, every service under it by
// path-prefix match), cascading metadata/content/word-index rows,
// decrementing per-type stats, and appending Delete events (§4.3 "Delete").
func (ix *Indexer) Delete(ctx context.Context, path string) error {
	common := ix.manager.Handle(dbengine.DBCommon)
	dir, name := baseAndDir(path)

	rows, err := ix.collectServiceSubtree(ctx, common, dir, name)
	if err != nil {
		return err
	}

	var duds []int
	for _, row := range rows {
		st, ok := ix.registry.ServiceByID(int(row.ServiceTypeID))
		if !ok {
			continue
		}

		if err := ix.deleteMetadataAndContent(ctx, st, row.ID); err != nil {
			return err
		}

		if err := common.ProcedureNoReply(ctx, procDeleteService, row.ID); err != nil {
			return err
		}
		if err := common.ProcedureNoReply(ctx, procBumpTypeStat, st.ID, -1); err != nil {
			return err
		}
		if err := ix.appendEvent(ctx, common, row.ID, EventDelete); err != nil {
			return err
		}
		duds = append(duds, int(row.ID))
	}

	if len(duds) > 0 {
		if err := ix.fileWords.RemoveDuds(ctx, duds); err != nil {
			return err
		}
		if err := ix.emailWords.RemoveDuds(ctx, duds); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) collectServiceSubtree(ctx context.Context, common *dbengine.Handle, dir, name string) ([]serviceRow, error) {
	fullPath := joinPath(dir, name)

	var ids []int64
	if self, err := common.Procedure(ctx, procGetServiceByPath, dir, name); err == nil && self.Next() {
		ids = append(ids, self.Get(0).Int)
	}

	res, err := common.Procedure(ctx, procDeleteByPrefix, fullPath, escapeLike(fullPath)+`/%`)
	if err != nil {
		return nil, err
	}
	for res.Next() {
		ids = append(ids, res.Get(0).Int)
	}

	var rows []serviceRow
	for _, id := range ids {
		r, err := common.Procedure(ctx, procGetServiceByID, id)
		if err != nil {
			return nil, err
		}
		if !r.Next() {
			continue
		}
		rows = append(rows, serviceRow{
			ID:            r.Get(0).Int,
			Path:          r.Get(1).AsString(),
			Name:          r.Get(2).AsString(),
			ServiceTypeID: r.Get(3).Int,
		})
	}
	return rows, nil
}

func (ix *Indexer) deleteMetadataAndContent(ctx context.Context, st *ontology.ServiceType, serviceID int64) error {
	meta := ix.metaHandleFor(st.DB)
	for _, proc := range []string{procDeleteStringForService, procDeleteNumericForService, procDeleteKeywordForService, procDeleteBlobForService} {
		if err := meta.ProcedureNoReply(ctx, proc, serviceID); err != nil {
			return err
		}
	}

	content := ix.contentHandleFor(st.DB)
	if err := content.ProcedureNoReply(ctx, procDeleteContentBlob, serviceID); err != nil {
		return err
	}

	common := ix.manager.Handle(dbengine.DBCommon)
	return common.ProcedureNoReply(ctx, procDeleteBackup, serviceID)
}

// Move rewrites path/name and the File:Path/File:Name metadata, appending
// an Update event (§4.3 "Move"). The writes are separate statements, not
// one transaction, and failures of the metadata rewrites are ignored.
// Embedded-metadata backup rows are keyed by service id and are left as
// they are.
func (ix *Indexer) Move(ctx context.Context, oldPath, newPath string) error {
	common := ix.manager.Handle(dbengine.DBCommon)
	oldDir, oldName := baseAndDir(oldPath)
	newDir, newName := baseAndDir(newPath)

	res, err := common.Procedure(ctx, procGetServiceByPath, oldDir, oldName)
	if err != nil {
		return err
	}
	if !res.Next() {
		return fmt.Errorf("indexer: move: %s not indexed", oldPath)
	}
	serviceID := res.Get(0).Int
	serviceTypeID := res.Get(3).Int

	if err := common.ProcedureNoReply(ctx, procMoveService, newDir, newName, serviceID); err != nil {
		return err
	}

	st, ok := ix.registry.ServiceByID(int(serviceTypeID))
	if ok {
		meta := ix.metaHandleFor(st.DB)
		if pathField, ok := ix.registry.FieldByName("File:Path"); ok {
			_ = meta.ProcedureNoReply(ctx, procClearStringForField, serviceID, pathField.ID)
			_ = meta.ProcedureNoReply(ctx, procInsertMetaString, serviceID, pathField.ID, newDir)
		}
		if nameField, ok := ix.registry.FieldByName("File:Name"); ok {
			_ = meta.ProcedureNoReply(ctx, procClearStringForField, serviceID, nameField.ID)
			_ = meta.ProcedureNoReply(ctx, procInsertMetaString, serviceID, nameField.ID, newName)
		}
	}

	return ix.appendEvent(ctx, common, serviceID, EventUpdate)
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
