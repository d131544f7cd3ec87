package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

type GroupRole string

const (
	RoleManager GroupRole = "manager"
	RoleGrader  GroupRole = "grader"
	RoleMember  GroupRole = "member"
)

type Group struct {
	Model
	Name string
}

func (Group) TableName() string {
	return "group"
}

func (g Group) GetID() uuid.UUID {
	return g.ID
}

type GroupMember struct {
	Model
	GroupID uuid.UUID `gorm:"uniqueIndex:idx_group_member"`
	UserID  uuid.UUID `gorm:"uniqueIndex:idx_group_member"`
	Role    GroupRole `gorm:"type:text"`
}

func (GroupMember) TableName() string {
	return "group_member"
}

func (m GroupMember) GetID() uuid.UUID {
	return m.ID
}

// Role of a user within a group. Returns an empty role with no error when
// the user is not a member.
func MemberRole(
	ctx context.Context,
	db *gorm.DB,
	groupID, userID uuid.UUID,
) (GroupRole, error) {
	ctx, span := tracer.Start(ctx, "MemberRole")
	defer span.End()

	span.SetAttributes(
		attribute.String("groupID", groupID.String()),
		attribute.String("userID", userID.String()),
	)

	db = db.WithContext(ctx)

	var member GroupMember
	err := db.Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch group member")
		return "", fmt.Errorf("failed to fetch group member: %w", err)
	}

	return member.Role, nil
}
