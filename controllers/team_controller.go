// controllers/team_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/refermart/refermart_backend/models"
	"github.com/refermart/refermart_backend/repositories"
)

// TeamController serves the two-level team listing and matrix progress.
type TeamController struct {
	members  *repositories.MemberRepository
	matrix   *repositories.MatrixRepository
	earnings *repositories.EarningRepository
	ladder   *models.StageLadder
}

func NewTeamController(members *repositories.MemberRepository, matrix *repositories.MatrixRepository, earnings *repositories.EarningRepository, ladder *models.StageLadder) *TeamController {
	return &TeamController{
		members:  members,
		matrix:   matrix,
		earnings: earnings,
		ladder:   ladder,
	}
}

// GetTeam lists the member's downstream up to two levels, with how much each
// downstream member has earned them.
func (tc *TeamController) GetTeam(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	member, ok := currentMember(ctx, c, tc.members)
	if !ok {
		return nil
	}

	level1, err := tc.members.ListByReferrerCode(ctx, member.ReferralCode)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
			Data:    err.Error(),
		})
	}

	team := make([]models.TeamMember, 0, len(level1))
	sourceIDs := make([]primitive.ObjectID, 0, len(level1))

	for _, m := range level1 {
		team = append(team, models.TeamMember{
			MemberID: m.ID,
			FullName: m.FullName,
			Level:    1,
			JoinedAt: m.CreatedAt,
		})
		sourceIDs = append(sourceIDs, m.ID)

		level2, err := tc.members.ListByReferrerCode(ctx, m.ReferralCode)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Database error",
				Data:    err.Error(),
			})
		}
		for _, m2 := range level2 {
			team = append(team, models.TeamMember{
				MemberID: m2.ID,
				FullName: m2.FullName,
				Level:    2,
				JoinedAt: m2.CreatedAt,
			})
			sourceIDs = append(sourceIDs, m2.ID)
		}
	}

	totals, err := tc.earnings.TotalsBySource(ctx, member.ID, sourceIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
			Data:    err.Error(),
		})
	}
	for i := range team {
		if total, ok := totals[team[i].MemberID]; ok {
			team[i].HasCredited = true
			team[i].EarningFromMember = total
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Team fetched successfully",
		Data:    team,
	})
}

// GetStageProgress reports how many slots of the current stage's matrix are
// filled.
func (tc *TeamController) GetStageProgress(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	member, ok := currentMember(ctx, c, tc.members)
	if !ok {
		return nil
	}

	stageDef, found := tc.ladder.Stage(member.CurrentStage)
	if !found {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Member stage not present in ladder",
		})
	}

	progress := models.StageProgress{
		CurrentStage:  member.CurrentStage,
		SlotsRequired: stageDef.SlotsRequired,
	}

	if stageDef.SlotsRequired > 0 {
		record, err := tc.matrix.Progress(ctx, member.ID, member.CurrentStage)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Database error",
				Data:    err.Error(),
			})
		}
		if record != nil {
			progress.SlotsFilled = record.SlotsFilled
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Stage progress fetched successfully",
		Data:    progress,
	})
}
