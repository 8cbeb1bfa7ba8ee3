// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"agritrace/internal/domain"
	pkgerrors "agritrace/pkg/errors"
)

// PostgresStore 基于 pgx 连接池的账本主存储。
// 持有权相关的检查-写入走 SELECT ... FOR UPDATE 行锁（见 withBatchLock）。
type PostgresStore struct {
	pool *pgxpool.Pool
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id           TEXT PRIMARY KEY,
	farmer_id          TEXT NOT NULL,
	crop_type          TEXT NOT NULL,
	quantity           DOUBLE PRECISION NOT NULL,
	unit               TEXT NOT NULL DEFAULT 'kg',
	harvest_date       TIMESTAMPTZ NOT NULL,
	quality_grade      TEXT NOT NULL,
	status             TEXT NOT NULL,
	location           TEXT NOT NULL DEFAULT '',
	pesticide_used     BOOLEAN NOT NULL DEFAULT FALSE,
	organic_certified  BOOLEAN NOT NULL DEFAULT FALSE,
	ledger_tx_hash     TEXT NOT NULL DEFAULT '',
	verified           BOOLEAN NOT NULL DEFAULT FALSE,
	verified_by        TEXT NOT NULL DEFAULT '',
	verification_notes TEXT NOT NULL DEFAULT '',
	verified_at        TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_batches_farmer ON batches (farmer_id);
CREATE INDEX IF NOT EXISTS idx_batches_status ON batches (status);
CREATE INDEX IF NOT EXISTS idx_batches_unanchored ON batches (created_at) WHERE ledger_tx_hash = '';

CREATE TABLE IF NOT EXISTS transfer_events (
	event_id      TEXT PRIMARY KEY,
	batch_id      TEXT NOT NULL REFERENCES batches (batch_id) ON DELETE CASCADE,
	from_party    TEXT NOT NULL,
	to_party      TEXT NOT NULL DEFAULT '',
	event_type    TEXT NOT NULL,
	location      TEXT NOT NULL DEFAULT '',
	temperature   DOUBLE PRECISION,
	humidity      DOUBLE PRECISION,
	ledger_tx_ref TEXT NOT NULL DEFAULT '',
	notes         TEXT NOT NULL DEFAULT '',
	occurred_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_batch ON transfer_events (batch_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_events_party ON transfer_events (from_party, to_party);

CREATE TABLE IF NOT EXISTS quality_reports (
	report_id         TEXT PRIMARY KEY,
	batch_id          TEXT NOT NULL REFERENCES batches (batch_id) ON DELETE CASCADE,
	inspector_id      TEXT NOT NULL,
	inspection_date   TIMESTAMPTZ NOT NULL,
	grade             TEXT NOT NULL,
	pesticide_used    BOOLEAN NOT NULL DEFAULT FALSE,
	organic_certified BOOLEAN NOT NULL DEFAULT FALSE,
	moisture_content  DOUBLE PRECISION,
	contamination     TEXT NOT NULL DEFAULT '',
	remarks           TEXT NOT NULL DEFAULT '',
	report_url        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_reports_batch ON quality_reports (batch_id, inspection_date);
`

// NewPostgresStore 创建 Postgres 存储并确保表结构存在
func NewPostgresStore(ctx context.Context, dsn string, poolSize int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "解析 postgres dsn 失败")
	}
	if poolSize > 0 {
		cfg.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "创建 postgres 连接池失败")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, pkgerrors.Wrap(err, "连接 postgres 失败")
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, pkgerrors.Wrap(err, "初始化表结构失败")
	}
	return &PostgresStore{pool: pool}, nil
}

// mapPgError 将数据库错误映射为领域错误
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return domain.ErrDuplicateResource
		case "23503":
			return domain.ErrInvalidReference
		}
	}
	return err
}

const batchColumns = `batch_id, farmer_id, crop_type, quantity, unit, harvest_date,
	quality_grade, status, location, pesticide_used, organic_certified,
	ledger_tx_hash, verified, verified_by, verification_notes, verified_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*domain.Batch, error) {
	var b domain.Batch
	err := row.Scan(
		&b.BatchID, &b.FarmerID, &b.CropType, &b.Quantity, &b.Unit, &b.HarvestDate,
		&b.QualityGrade, &b.Status, &b.Location, &b.PesticideUsed, &b.OrganicCertified,
		&b.LedgerTxHash, &b.Verified, &b.VerifiedBy, &b.VerificationNotes, &b.VerifiedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &b, nil
}

// CreateBatch 创建批次；批次号冲突返回 ErrDuplicateResource
func (s *PostgresStore) CreateBatch(ctx context.Context, b *domain.Batch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO batches (batch_id, farmer_id, crop_type, quantity, unit, harvest_date,
			quality_grade, status, location, pesticide_used, organic_certified,
			ledger_tx_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.BatchID, b.FarmerID, b.CropType, b.Quantity, b.Unit, b.HarvestDate,
		b.QualityGrade, b.Status, b.Location, b.PesticideUsed, b.OrganicCertified,
		b.LedgerTxHash, b.CreatedAt, b.UpdatedAt,
	)
	return mapPgError(err)
}

// GetBatch 按批次号获取
func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE batch_id = $1`, batchID)
	return scanBatch(row)
}

// UpdateBatch 按更新命令修改允许的字段
func (s *PostgresStore) UpdateBatch(ctx context.Context, batchID string, upd domain.BatchUpdate) (*domain.Batch, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{batchID}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.QualityGrade != nil {
		add("quality_grade", *upd.QualityGrade)
	}
	if upd.LedgerTxHash != nil {
		add("ledger_tx_hash", *upd.LedgerTxHash)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE batches SET `+strings.Join(sets, ", ")+` WHERE batch_id = $1 RETURNING `+batchColumns,
		args...,
	)
	return scanBatch(row)
}

// DeleteBatch 删除批次；事件与报告由外键级联删除
func (s *PostgresStore) DeleteBatch(ctx context.Context, batchID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM batches WHERE batch_id = $1`, batchID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListBatches 过滤分页列出批次（创建时间降序），返回总数
func (s *PostgresStore) ListBatches(ctx context.Context, filter BatchFilter, page Pagination) ([]*domain.Batch, int64, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.FarmerID != "" {
		args = append(args, filter.FarmerID)
		where = append(where, fmt.Sprintf("farmer_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CropType != "" {
		args = append(args, "%"+filter.CropType+"%")
		where = append(where, fmt.Sprintf("crop_type ILIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM batches WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	if page.Limit <= 0 {
		page.Limit = 50
	}
	args = append(args, page.Limit, page.Offset)
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM batches WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			batchColumns, cond, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	var out []*domain.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, mapPgError(rows.Err())
}

// ListUnanchored 列出尚未锚定的批次（创建时间升序）
func (s *PostgresStore) ListUnanchored(ctx context.Context, limit int) ([]*domain.Batch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE ledger_tx_hash = '' ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []*domain.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, mapPgError(rows.Err())
}

// SetAnchor 写入锚定哈希
func (s *PostgresStore) SetAnchor(ctx context.Context, batchID, txHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET ledger_tx_hash = $2, updated_at = NOW() WHERE batch_id = $1`,
		batchID, txHash,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// StampVerification 写入核验盖章元数据
func (s *PostgresStore) StampVerification(ctx context.Context, batchID string, v domain.VerificationStamp) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE batches SET verified = $2, verified_by = $3, verification_notes = $4,
			verified_at = $5, updated_at = NOW()
		WHERE batch_id = $1`,
		batchID, v.Verified, v.VerifiedBy, v.Notes, v.VerifiedAt,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByStatus 各状态批次数
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM batches GROUP BY status`)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make(map[domain.Status]int64)
	for rows.Next() {
		var st domain.Status
		var n int64
		if err := rows.Scan(&st, &n); err != nil {
			return nil, mapPgError(err)
		}
		out[st] = n
	}
	return out, mapPgError(rows.Err())
}

// withBatchLock 在事务内对批次行加 FOR UPDATE 锁，读出有序事件流后执行 fn。
// fn 报错则回滚，确保检查-写入的原子性。
func (s *PostgresStore) withBatchLock(ctx context.Context, batchID string, fn func(tx pgx.Tx, b *domain.Batch, events []*domain.TransferEvent) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE batch_id = $1 FOR UPDATE`, batchID)
	b, err := scanBatch(row)
	if err != nil {
		return err
	}
	events, err := queryBatchEvents(ctx, tx, batchID)
	if err != nil {
		return err
	}
	if err := fn(tx, b, events); err != nil {
		return err
	}
	return mapPgError(tx.Commit(ctx))
}

const eventColumns = `event_id, batch_id, from_party, to_party, event_type, location,
	temperature, humidity, ledger_tx_ref, notes, occurred_at`

func scanEvent(row rowScanner) (*domain.TransferEvent, error) {
	var e domain.TransferEvent
	err := row.Scan(
		&e.EventID, &e.BatchID, &e.FromParty, &e.ToParty, &e.Type, &e.Location,
		&e.Temperature, &e.Humidity, &e.LedgerTxRef, &e.Notes, &e.OccurredAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &e, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryBatchEvents(ctx context.Context, q querier, batchID string) ([]*domain.TransferEvent, error) {
	rows, err := q.Query(ctx,
		`SELECT `+eventColumns+` FROM transfer_events WHERE batch_id = $1 ORDER BY occurred_at ASC`,
		batchID,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []*domain.TransferEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, mapPgError(rows.Err())
}

func insertEvent(ctx context.Context, q interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}, e *domain.TransferEvent) error {
	_, err := q.Exec(ctx, `
		INSERT INTO transfer_events (event_id, batch_id, from_party, to_party, event_type,
			location, temperature, humidity, ledger_tx_ref, notes, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.EventID, e.BatchID, e.FromParty, e.ToParty, e.Type,
		e.Location, e.Temperature, e.Humidity, e.LedgerTxRef, e.Notes, e.OccurredAt,
	)
	return mapPgError(err)
}

// TransferCustody 行锁内执行 fn 并追加其返回的事件
func (s *PostgresStore) TransferCustody(ctx context.Context, batchID string, fn TransferFunc) (*domain.TransferEvent, error) {
	var out *domain.TransferEvent
	err := s.withBatchLock(ctx, batchID, func(tx pgx.Tx, b *domain.Batch, events []*domain.TransferEvent) error {
		e, err := fn(b, events)
		if err != nil {
			return err
		}
		if err := insertEvent(ctx, tx, e); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE batches SET updated_at = NOW() WHERE batch_id = $1`, batchID); err != nil {
			return mapPgError(err)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatusLocked 行锁内执行 fn，更新状态并追加事件
func (s *PostgresStore) UpdateStatusLocked(ctx context.Context, batchID string, fn StatusFunc) (*domain.Batch, error) {
	var out *domain.Batch
	err := s.withBatchLock(ctx, batchID, func(tx pgx.Tx, b *domain.Batch, events []*domain.TransferEvent) error {
		next, e, err := fn(b, events)
		if err != nil {
			return err
		}
		row := tx.QueryRow(ctx,
			`UPDATE batches SET status = $2, updated_at = NOW() WHERE batch_id = $1 RETURNING `+batchColumns,
			batchID, next,
		)
		updated, err := scanBatch(row)
		if err != nil {
			return err
		}
		if e != nil {
			if err := insertEvent(ctx, tx, e); err != nil {
				return err
			}
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendEvent 追加一条流转事件；批次不存在返回 ErrInvalidReference
func (s *PostgresStore) AppendEvent(ctx context.Context, e *domain.TransferEvent) error {
	return insertEvent(ctx, s.pool, e)
}

// ListEvents 按发生时间升序列出批次的全部事件
func (s *PostgresStore) ListEvents(ctx context.Context, batchID string) ([]*domain.TransferEvent, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM batches WHERE batch_id = $1)`, batchID).Scan(&exists); err != nil {
		return nil, mapPgError(err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return queryBatchEvents(ctx, s.pool, batchID)
}

// QueryEvents 过滤分页列出事件（时间降序）
func (s *PostgresStore) QueryEvents(ctx context.Context, filter EventFilter, page Pagination) ([]*domain.TransferEvent, int64, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		where = append(where, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	if filter.Party != "" {
		args = append(args, filter.Party)
		where = append(where, fmt.Sprintf("(from_party = $%d OR to_party = $%d)", len(args), len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("event_type = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transfer_events WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	if page.Limit <= 0 {
		page.Limit = 100
	}
	args = append(args, page.Limit, page.Offset)
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM transfer_events WHERE %s ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d`,
			eventColumns, cond, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	var out []*domain.TransferEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, mapPgError(rows.Err())
}

// SetEventLedgerRef 补写链上交易引用
func (s *PostgresStore) SetEventLedgerRef(ctx context.Context, eventID, txRef string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transfer_events SET ledger_tx_ref = $2 WHERE event_id = $1`,
		eventID, txRef,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const reportColumns = `report_id, batch_id, inspector_id, inspection_date, grade,
	pesticide_used, organic_certified, moisture_content, contamination, remarks,
	report_url, created_at, updated_at`

func scanReport(row rowScanner) (*domain.QualityReport, error) {
	var r domain.QualityReport
	err := row.Scan(
		&r.ReportID, &r.BatchID, &r.InspectorID, &r.InspectionDate, &r.Grade,
		&r.PesticideUsed, &r.OrganicCertified, &r.MoistureContent, &r.Contamination, &r.Remarks,
		&r.ReportURL, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &r, nil
}

// CreateReport 创建质检报告并在同一事务内更新批次当前等级
func (s *PostgresStore) CreateReport(ctx context.Context, r *domain.QualityReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO quality_reports (report_id, batch_id, inspector_id, inspection_date, grade,
			pesticide_used, organic_certified, moisture_content, contamination, remarks,
			report_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ReportID, r.BatchID, r.InspectorID, r.InspectionDate, r.Grade,
		r.PesticideUsed, r.OrganicCertified, r.MoistureContent, r.Contamination, r.Remarks,
		r.ReportURL, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE batches SET quality_grade = $2, updated_at = NOW() WHERE batch_id = $1`,
		r.BatchID, r.Grade,
	); err != nil {
		return mapPgError(err)
	}
	return mapPgError(tx.Commit(ctx))
}

// GetReport 按报告号获取
func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (*domain.QualityReport, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM quality_reports WHERE report_id = $1`, reportID)
	return scanReport(row)
}

// UpdateReport 按更新命令修改报告；等级变化时同一事务内更新批次等级
func (s *PostgresStore) UpdateReport(ctx context.Context, reportID string, upd domain.ReportUpdate) (*domain.QualityReport, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer tx.Rollback(ctx)

	sets := []string{"updated_at = NOW()"}
	args := []any{reportID}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Grade != nil {
		add("grade", *upd.Grade)
	}
	if upd.Remarks != nil {
		add("remarks", *upd.Remarks)
	}
	if upd.PesticideUsed != nil {
		add("pesticide_used", *upd.PesticideUsed)
	}
	if upd.OrganicCertified != nil {
		add("organic_certified", *upd.OrganicCertified)
	}
	if upd.MoistureContent != nil {
		add("moisture_content", *upd.MoistureContent)
	}
	if upd.Contamination != nil {
		add("contamination", *upd.Contamination)
	}
	if upd.ReportURL != nil {
		add("report_url", *upd.ReportURL)
	}
	row := tx.QueryRow(ctx,
		`UPDATE quality_reports SET `+strings.Join(sets, ", ")+` WHERE report_id = $1 RETURNING `+reportColumns,
		args...,
	)
	r, err := scanReport(row)
	if err != nil {
		return nil, err
	}
	if upd.Grade != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE batches SET quality_grade = $2, updated_at = NOW() WHERE batch_id = $1`,
			r.BatchID, r.Grade,
		); err != nil {
			return nil, mapPgError(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return r, nil
}

// DeleteReport 删除报告
func (s *PostgresStore) DeleteReport(ctx context.Context, reportID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quality_reports WHERE report_id = $1`, reportID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListReportsByBatch 按批次列出报告（检验日期升序）
func (s *PostgresStore) ListReportsByBatch(ctx context.Context, batchID string) ([]*domain.QualityReport, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM batches WHERE batch_id = $1)`, batchID).Scan(&exists); err != nil {
		return nil, mapPgError(err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM quality_reports WHERE batch_id = $1 ORDER BY inspection_date ASC`,
		batchID,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []*domain.QualityReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, mapPgError(rows.Err())
}

// Close 关闭连接池
func (s *PostgresStore) Close() {
	s.pool.Close()
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*MemoryStore)(nil)
