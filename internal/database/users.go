package database

import (
	"context"
	"errors"
	"sessiongate/internal/models"

	"github.com/jackc/pgx/v5"
)

const userWithPlanQuery = `
	SELECT
		u.id, u.email, u.password_hash, u.role, u.is_verified, u.subscription_plan_id, u.created_at,
		p.id, p.plan_name, p.description, p.max_concurrent_sessions
	FROM users u
	JOIN subscription_plans p ON p.id = u.subscription_plan_id
`

func scanUserWithPlan(row pgx.Row) (*models.UserWithPlan, error) {
	var u models.UserWithPlan
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.IsVerified,
		&u.PlanID,
		&u.CreatedAt,
		&u.Plan.ID,
		&u.Plan.Name,
		&u.Plan.Description,
		&u.Plan.MaxConcurrentSessions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.UserWithPlan, error) {
	return scanUserWithPlan(q.db.QueryRow(ctx, userWithPlanQuery+` WHERE u.email = $1`, email))
}

func (q *Queries) GetUserWithPlan(ctx context.Context, id int64) (*models.UserWithPlan, error) {
	return scanUserWithPlan(q.db.QueryRow(ctx, userWithPlanQuery+` WHERE u.id = $1`, id))
}

// GetPlanForUser returns the plan the user is currently bound to.
func (q *Queries) GetPlanForUser(ctx context.Context, userID int64) (*models.SubscriptionPlan, error) {
	query := `
		SELECT p.id, p.plan_name, p.description, p.max_concurrent_sessions
		FROM subscription_plans p
		JOIN users u ON u.subscription_plan_id = p.id
		WHERE u.id = $1
	`
	var plan models.SubscriptionPlan
	err := q.db.QueryRow(ctx, query, userID).Scan(
		&plan.ID,
		&plan.Name,
		&plan.Description,
		&plan.MaxConcurrentSessions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (q *Queries) GetPlanByName(ctx context.Context, name string) (*models.SubscriptionPlan, error) {
	query := `
		SELECT id, plan_name, description, max_concurrent_sessions
		FROM subscription_plans
		WHERE plan_name = $1
	`
	var plan models.SubscriptionPlan
	err := q.db.QueryRow(ctx, query, name).Scan(
		&plan.ID,
		&plan.Name,
		&plan.Description,
		&plan.MaxConcurrentSessions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Role         string
	IsVerified   bool
	PlanID       int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	role := arg.Role
	if role == "" {
		role = "student"
	}

	query := `
		INSERT INTO users (email, password_hash, role, is_verified, subscription_plan_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, password_hash, role, is_verified, subscription_plan_id, created_at
	`
	var user models.User
	err := q.db.QueryRow(ctx, query, arg.Email, arg.PasswordHash, role, arg.IsVerified, arg.PlanID).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsVerified,
		&user.PlanID,
		&user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}
