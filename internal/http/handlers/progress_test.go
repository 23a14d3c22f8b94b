package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

type fakeTasks struct {
	services.TaskGenerator
	gotDone services.TaskCompletion
	err     error
}

func (f *fakeTasks) GetAdditionalTasks(ctx context.Context, userID uuid.UUID, done services.TaskCompletion) (*services.AdditionalTasks, error) {
	f.gotDone = done
	if f.err != nil {
		return nil, f.err
	}
	return &services.AdditionalTasks{
		Tasks:        []services.DailyTask{{PrimitiveID: "c9", Bucket: types.BucketCritical}},
		BucketSource: string(types.BucketCritical),
		CanAddMore:   true,
	}, nil
}

type fakeProgression struct {
	services.ProgressionService
	gotPrimitive string
	gotBlueprint uuid.UUID
	err          error
}

func (f *fakeProgression) CheckProgression(ctx context.Context, userID uuid.UUID, primitiveID string, blueprintID uuid.UUID) (*services.ProgressionCheck, error) {
	f.gotPrimitive, f.gotBlueprint = primitiveID, blueprintID
	return &services.ProgressionCheck{PrimitiveID: primitiveID, CurrentLevel: types.MasteryLevelUse, NextLevel: types.MasteryLevelExplore}, nil
}

func (f *fakeProgression) AdvanceLevel(ctx context.Context, userID uuid.UUID, primitiveID string, blueprintID uuid.UUID) (*services.ProgressionCheck, error) {
	f.gotPrimitive, f.gotBlueprint = primitiveID, blueprintID
	check := &services.ProgressionCheck{PrimitiveID: primitiveID, CurrentLevel: types.MasteryLevelUse, WeightedMastery: 0.5}
	if f.err != nil {
		return check, f.err
	}
	check.CurrentLevel = types.MasteryLevelExplore
	return check, nil
}

func newProgressRouter(h *ProgressHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/users/:userId/daily-tasks/more", h.GetAdditionalTasks)
	r.GET("/api/users/:userId/primitives/:primitiveId/progression", h.CheckProgression)
	r.POST("/api/users/:userId/primitives/:primitiveId/progression", h.AdvanceLevel)
	return r
}

func TestAdditionalTasksForwardsCompletion(t *testing.T) {
	tasks := &fakeTasks{}
	r := newProgressRouter(NewProgressHandler(tasks, &fakeProgression{}))

	rec := do(r, http.MethodPost, "/api/users/"+uuid.NewString()+"/daily-tasks/more", gin.H{
		"critical": gin.H{"total_assigned": 5, "completed_count": 4},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if tasks.gotDone.Critical.TotalAssigned != 5 || tasks.gotDone.Critical.CompletedCount != 4 {
		t.Fatalf("completion not forwarded: %+v", tasks.gotDone)
	}
	var body services.AdditionalTasks
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Tasks) != 1 || body.BucketSource != "critical" || !body.CanAddMore {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	tasks.err = fmt.Errorf("completion: %w", services.ErrCannotProgress)
	if rec := do(r, http.MethodPost, "/api/users/"+uuid.NewString()+"/daily-tasks/more", gin.H{}); rec.Code != http.StatusConflict {
		t.Fatalf("service conflict: want=409 got=%d", rec.Code)
	}
}

func TestCheckProgressionNeedsBlueprint(t *testing.T) {
	prog := &fakeProgression{}
	r := newProgressRouter(NewProgressHandler(&fakeTasks{}, prog))
	base := "/api/users/" + uuid.NewString() + "/primitives/p7/progression"

	if rec := do(r, http.MethodGet, base, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing blueprint: want=400 got=%d", rec.Code)
	}
	blueprintID := uuid.New()
	rec := do(r, http.MethodGet, base+"?blueprintId="+blueprintID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if prog.gotPrimitive != "p7" || prog.gotBlueprint != blueprintID {
		t.Fatalf("forwarded: primitive=%s blueprint=%s", prog.gotPrimitive, prog.gotBlueprint)
	}
}

func TestAdvanceLevelReportsBlockedCheck(t *testing.T) {
	prog := &fakeProgression{}
	r := newProgressRouter(NewProgressHandler(&fakeTasks{}, prog))
	path := "/api/users/" + uuid.NewString() + "/primitives/p7/progression"
	blueprintID := uuid.New()

	rec := do(r, http.MethodPost, path, gin.H{"blueprint_id": blueprintID})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if prog.gotBlueprint != blueprintID {
		t.Fatalf("blueprint not forwarded")
	}

	prog.err = fmt.Errorf("%w: 0.50 < 0.80", services.ErrCannotProgress)
	rec = do(r, http.MethodPost, path, gin.H{"blueprint_id": blueprintID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("blocked: want=409 got=%d", rec.Code)
	}
	var body struct {
		Progression services.ProgressionCheck `json:"progression"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Progression.WeightedMastery != 0.5 || body.Progression.CurrentLevel != types.MasteryLevelUse {
		t.Fatalf("blocked response should carry the check: %s", rec.Body.String())
	}
}
