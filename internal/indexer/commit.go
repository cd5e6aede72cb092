package indexer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/trackerd/trackerd/internal/dbengine"
	"github.com/trackerd/trackerd/internal/ontology"
	"github.com/trackerd/trackerd/internal/textpipeline"
)

// existingService mirrors one row read back from the services table.
type existingService struct {
	ID            int64
	ServiceTypeID int64
	Mtime         int64
}

// Commit processes one crawler discovery: extracts metadata, and either
// creates a new Service row (§4.3 "Indexer commit") or updates an
// existing one (§4.3 "Update"), diffing the word index either way.
func (ix *Indexer) Commit(ctx context.Context, module, path string, isDir bool, mtime time.Time, size int64) error {
	st, mime := ix.resolveServiceType(path, isDir)
	if st == nil {
		return fmt.Errorf("indexer: no service type resolved for %s", path)
	}

	extracted, err := ix.extractor.Extract(ctx, module, path, isDir)
	if err != nil {
		return fmt.Errorf("indexer: extract %s: %w", path, err)
	}

	dir, name := baseAndDir(path)
	common := ix.manager.Handle(dbengine.DBCommon)

	existing, err := ix.lookupExisting(ctx, common, dir, name)
	if err != nil {
		return err
	}

	if existing == nil {
		return ix.createService(ctx, st, mime, dir, name, isDir, mtime, size, extracted)
	}
	return ix.updateService(ctx, st, existing, dir, name, mtime, size, extracted)
}

func (ix *Indexer) lookupExisting(ctx context.Context, common *dbengine.Handle, dir, name string) (*existingService, error) {
	res, err := common.Procedure(ctx, procGetServiceByPath, dir, name)
	if err != nil {
		return nil, err
	}
	if !res.Next() {
		return nil, nil
	}
	return &existingService{
		ID:            res.Get(0).Int,
		ServiceTypeID: res.Get(3).Int,
		Mtime:         res.Get(9).Int,
	}, nil
}

func (ix *Indexer) createService(ctx context.Context, st *ontology.ServiceType, mime, dir, name string, isDir bool, mtime time.Time, size int64, extracted *ExtractedMetadata) error {
	common := ix.manager.Handle(dbengine.DBCommon)

	idRes, err := common.Procedure(ctx, procNextCounter, "service_id")
	if err != nil {
		return fmt.Errorf("indexer: allocate service id: %w", err)
	}
	if !idRes.Next() {
		return fmt.Errorf("indexer: counter returned no row")
	}
	serviceID := idRes.Get(0).Int

	if err := common.ProcedureNoReply(ctx, procInsertService,
		serviceID, dir, name, st.ID, mime, size, boolToInt(isDir), 0, 0, mtime.Unix(), 0); err != nil {
		return fmt.Errorf("indexer: insert service: %w", err)
	}

	if err := ix.writeMetadata(ctx, st, serviceID, nil, extracted); err != nil {
		return err
	}

	if extracted.FullText != nil {
		if err := ix.writeContent(ctx, st, serviceID, extracted.FullText); err != nil {
			return err
		}
	}

	if err := common.ProcedureNoReply(ctx, procBumpTypeStat, st.ID, 1); err != nil {
		return err
	}
	return ix.appendEvent(ctx, common, serviceID, EventCreate)
}

func (ix *Indexer) updateService(ctx context.Context, st *ontology.ServiceType, existing *existingService, dir, name string, mtime time.Time, size int64, extracted *ExtractedMetadata) error {
	common := ix.manager.Handle(dbengine.DBCommon)

	if existing.Mtime == mtime.Unix() {
		return nil // unchanged since last index pass
	}

	if err := common.ProcedureNoReply(ctx, procUpdateService, mtime.Unix(), size, existing.ID); err != nil {
		return fmt.Errorf("indexer: update service: %w", err)
	}

	oldValues, err := ix.readMetadataValues(ctx, st, existing.ID)
	if err != nil {
		return err
	}

	if err := ix.writeMetadata(ctx, st, existing.ID, oldValues, extracted); err != nil {
		return err
	}

	if extracted.FullText != nil {
		if err := ix.writeContent(ctx, st, existing.ID, extracted.FullText); err != nil {
			return err
		}
	}

	return ix.appendEvent(ctx, common, existing.ID, EventUpdate)
}

// writeMetadata dispatches each extracted field by kind to the right
// metadata table, contributing keyword/index fields to the word index,
// and populating KeyMetadata1..11 for fields in st's key list (§4.3 step 3).
func (ix *Indexer) writeMetadata(ctx context.Context, st *ontology.ServiceType, serviceID int64, oldValues map[string][]string, extracted *ExtractedMetadata) error {
	meta := ix.metaHandleFor(st.DB)
	words := ix.wordIndexFor(st.DB)

	oldScores := map[string]int{}
	newScores := map[string]int{}
	for fieldName, values := range oldValues {
		field, ok := ix.registry.FieldByName(fieldName)
		if !ok || !tokenizableKind(field.Kind) {
			continue
		}
		for _, v := range values {
			for token, n := range textpipeline.ScoreMap(textpipeline.Tokenize(v, ix.tokenize)) {
				oldScores[token] += n
			}
		}
	}

	for fieldName, values := range extracted.Fields {
		field, ok := ix.registry.FieldByName(fieldName)
		if !ok {
			continue
		}

		if err := clearField(ctx, meta, serviceID, field); err != nil {
			return err
		}

		for _, v := range values {
			if err := insertFieldValue(ctx, meta, serviceID, field, v); err != nil {
				return err
			}
		}

		if tokenizableKind(field.Kind) {
			for _, v := range values {
				for token, n := range textpipeline.ScoreMap(textpipeline.Tokenize(v, ix.tokenize)) {
					newScores[token] += n * field.Weight
				}
			}
		}

		if field.Embedded {
			joined := strings.Join(values, "\x1f")
			common := ix.manager.Handle(dbengine.DBCommon)
			if err := common.ProcedureNoReply(ctx, procUpsertBackup, serviceID, field.ID, joined); err != nil {
				return err
			}
		}
	}

	if err := words.ApplyDifferential(ctx, int(serviceID), st.ID, oldScores, newScores); err != nil {
		return err
	}

	return ix.updateKeyMetadata(ctx, st, serviceID, extracted)
}

func tokenizableKind(kind ontology.FieldKind) bool {
	switch kind {
	case ontology.FieldKeyword, ontology.FieldIndex, ontology.FieldFullText:
		return true
	default:
		return false
	}
}

func clearField(ctx context.Context, h *dbengine.Handle, serviceID int64, field *ontology.Field) error {
	switch field.Kind {
	case ontology.FieldString, ontology.FieldDate, ontology.FieldFullText:
		return h.ProcedureNoReply(ctx, procClearStringForField, serviceID, field.ID)
	case ontology.FieldInteger, ontology.FieldDouble:
		return h.ProcedureNoReply(ctx, procClearNumericForField, serviceID, field.ID)
	case ontology.FieldKeyword, ontology.FieldIndex:
		return h.ProcedureNoReply(ctx, procClearKeywordForField, serviceID, field.ID)
	case ontology.FieldBlob:
		return h.ProcedureNoReply(ctx, procClearBlobForField, serviceID, field.ID)
	}
	return nil
}

func insertFieldValue(ctx context.Context, h *dbengine.Handle, serviceID int64, field *ontology.Field, value string) error {
	switch field.Kind {
	case ontology.FieldString, ontology.FieldDate, ontology.FieldFullText:
		return h.ProcedureNoReply(ctx, procInsertMetaString, serviceID, field.ID, value)
	case ontology.FieldInteger, ontology.FieldDouble:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			n = 0
		}
		return h.ProcedureNoReply(ctx, procInsertMetaNumeric, serviceID, field.ID, n)
	case ontology.FieldKeyword, ontology.FieldIndex:
		return h.ProcedureNoReply(ctx, procInsertMetaKeyword, serviceID, field.ID, value)
	case ontology.FieldBlob:
		return h.ProcedureNoReply(ctx, procInsertMetaBlob, serviceID, field.ID, []byte(value))
	}
	return nil
}

// readMetadataValues reads back every previously-stored tokenizable field
// value for serviceID (Keyword/Index values from metadata_keyword,
// FullText values from metadata_string), so writeMetadata can diff the old
// word-index contribution against the freshly extracted one. Non-tokenizable
// fields don't feed the word index and are skipped.
func (ix *Indexer) readMetadataValues(ctx context.Context, st *ontology.ServiceType, serviceID int64) (map[string][]string, error) {
	meta := ix.metaHandleFor(st.DB)
	values := make(map[string][]string)

	collect := func(proc string) error {
		res, err := meta.Procedure(ctx, proc, serviceID)
		if err != nil {
			return err
		}
		for res.Next() {
			field, ok := ix.registry.FieldByID(int(res.Get(0).Int))
			if !ok || !tokenizableKind(field.Kind) {
				continue
			}
			values[field.Name] = append(values[field.Name], res.Get(1).AsString())
		}
		return nil
	}

	if err := collect(procGetAllKeywordForService); err != nil {
		return nil, err
	}
	if err := collect(procGetAllStringForService); err != nil {
		return nil, err
	}
	return values, nil
}

func (ix *Indexer) updateKeyMetadata(ctx context.Context, st *ontology.ServiceType, serviceID int64, extracted *ExtractedMetadata) error {
	common := ix.manager.Handle(dbengine.DBCommon)
	for slot, fieldName := range st.KeyMetadata {
		if fieldName == "" {
			continue
		}
		values, ok := extracted.Fields[fieldName]
		if !ok || len(values) == 0 {
			continue
		}
		if err := common.ProcedureNoReply(ctx, keyMetadataProcName(slot+1), values[0], serviceID); err != nil {
			return err
		}
	}
	return nil
}

// writeContent compresses fullText via the text pipeline, stores the
// blob, and differentially updates the word index against whatever
// content was previously stored for this service (§4.4, §4.3 "Update").
func (ix *Indexer) writeContent(ctx context.Context, st *ontology.ServiceType, serviceID int64, fullText io.Reader) error {
	contentField, ok := ix.registry.FieldByName("File:Contents")
	if !ok {
		return nil
	}

	oldScores := map[string]int{}
	content := ix.contentHandleFor(st.DB)
	if res, err := content.Procedure(ctx, procGetContentBlob, serviceID); err == nil && res.Next() {
		if blob := res.Get(0).Blob; len(blob) > 0 {
			if decoded, err := textpipeline.Decode(blob); err == nil {
				oldScores = textpipeline.ScoreMap(textpipeline.Tokenize(decoded, ix.tokenize))
			}
		}
	}

	result, err := textpipeline.Encode(fullText, ix.tokenize)
	if err != nil {
		// §4.4 "on abort ... store nothing": leave any prior blob/postings
		// untouched rather than commit a partial encode.
		return nil
	}

	if err := content.ProcedureNoReply(ctx, procUpsertContentBlob, serviceID, contentField.ID, result.Compressed); err != nil {
		return err
	}

	words := ix.wordIndexFor(st.DB)
	return words.ApplyDifferential(ctx, int(serviceID), st.ID, oldScores, result.WordScores)
}

func (ix *Indexer) appendEvent(ctx context.Context, common *dbengine.Handle, serviceID int64, eventType EventType) error {
	idRes, err := common.Procedure(ctx, procNextCounter, "event_id")
	if err != nil {
		return err
	}
	if !idRes.Next() {
		return fmt.Errorf("indexer: event counter returned no row")
	}
	eventID := idRes.Get(0).Int
	if err := common.ProcedureNoReply(ctx, procAppendEvent, eventID, serviceID, int(eventType)); err != nil {
		return err
	}
	if ix.onEvent != nil {
		ix.onEvent()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
