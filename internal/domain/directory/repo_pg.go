package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type partyRepoPG struct{ pool *pgxpool.Pool }

func NewPartyRepoPG(pool *pgxpool.Pool) PartyRepository { return &partyRepoPG{pool: pool} }

func (r *partyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const partyCols = `id, name, role, email, phone, active, created_at`

func (r *partyRepoPG) scanParty(row pgx.Row) (*Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.Name, &p.Role, &p.Email, &p.Phone, &p.Active, &p.CreatedAt)
	return &p, err
}

func (r *partyRepoPG) Create(ctx context.Context, p *Party) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO parties (id, name, role, email, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.Name, p.Role, p.Email, p.Phone, p.Active)
	return err
}

func (r *partyRepoPG) FindByID(ctx context.Context, id uuid.UUID) (*Party, error) {
	p, err := r.scanParty(r.conn(ctx).QueryRow(ctx,
		`SELECT `+partyCols+` FROM parties WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPartyNotFound
	}
	return p, err
}

func (r *partyRepoPG) List(ctx context.Context, role string, limit, offset int) ([]*Party, int, error) {
	where := ``
	args := []interface{}{}
	if role != "" {
		where = ` WHERE role = $1`
		args = append(args, role)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM parties`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM parties%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		partyCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Party
	for rows.Next() {
		p, err := r.scanParty(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
