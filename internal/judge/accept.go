package judge

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/koguma/bearcourt/internal/fault"
	"github.com/koguma/bearcourt/internal/models"
)

// Party identifiers for acceptance and plan selection.
const (
	PartyPlaintiff = "plaintiff"
	PartyDefendant = "defendant"
)

// AcceptInput records one party's verdict on a judgment. ActorID is the
// guest session id for quick cases or the user id for full cases.
type AcceptInput struct {
	JudgmentID string
	ActorID    string
	Party      string
	Accepted   bool
	Rating     *int // optional, 1-5
}

// Accept stores a party's acceptance and rating. Repeat calls overwrite
// the previous value; last write wins.
func (s *Service) Accept(in AcceptInput) (*models.Judgment, error) {
	if in.Party != PartyPlaintiff && in.Party != PartyDefendant {
		return nil, fault.New(fault.KindValidation, "party must be plaintiff or defendant")
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return nil, fault.New(fault.KindValidation, "rating must be 1-5")
	}

	j, err := s.loadJudgment(in.JudgmentID)
	if err != nil {
		return nil, err
	}
	c, err := s.loadCase(j.CaseID)
	if err != nil {
		return nil, err
	}
	if !actorOwnsParty(c, in.ActorID, in.Party) {
		return nil, fault.New(fault.KindForbidden, "not a party to this judgment")
	}

	updates := map[string]any{}
	switch in.Party {
	case PartyPlaintiff:
		updates["plaintiff_accepted"] = in.Accepted
		updates["plaintiff_rating"] = in.Rating
	case PartyDefendant:
		updates["defendant_accepted"] = in.Accepted
		updates["defendant_rating"] = in.Rating
	}
	if err := s.db.Model(j).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("judge: accept judgment %s: %w", in.JudgmentID, err)
	}
	return s.loadJudgment(in.JudgmentID)
}

// actorOwnsParty checks that the actor is entitled to act as the given
// party. Quick cases hand both roles to the owning guest session.
func actorOwnsParty(c *models.Case, actorID, party string) bool {
	if c.Mode == models.CaseModeQuick {
		return c.SessionID != nil && *c.SessionID == actorID
	}
	switch party {
	case PartyPlaintiff:
		return c.PlaintiffID != nil && *c.PlaintiffID == actorID
	case PartyDefendant:
		return c.DefendantID != nil && *c.DefendantID == actorID
	}
	return false
}

func (s *Service) loadJudgment(id string) (*models.Judgment, error) {
	var j models.Judgment
	err := s.db.Where("id = ?", id).First(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.New(fault.KindNotFound, "judgment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("judge: load judgment %s: %w", id, err)
	}
	return &j, nil
}

func (s *Service) loadCase(id string) (*models.Case, error) {
	var c models.Case
	err := s.db.Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.New(fault.KindNotFound, "case not found")
	}
	if err != nil {
		return nil, fmt.Errorf("judge: load case %s: %w", id, err)
	}
	return &c, nil
}
