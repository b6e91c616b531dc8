package actions

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/models"
)

func TestParse(t *testing.T) {
	actor := uuid.New()
	target := uuid.New()
	nilTarget := uuid.Nil

	cases := []struct {
		name    string
		req     Request
		wantErr error
		want    models.ActionType
	}{
		{name: "work", req: Request{PlayerID: actor, ActionType: "Work"}, want: models.ActionWork},
		{name: "case insensitive", req: Request{PlayerID: actor, ActionType: " gatherintel "}, want: models.ActionGatherIntel},
		{name: "hack with target", req: Request{PlayerID: actor, ActionType: "hack", TargetID: &target}, want: models.ActionHack},
		{name: "heal self", req: Request{PlayerID: actor, ActionType: "Heal", TargetID: &actor}, want: models.ActionHeal},
		{name: "nil uuid target dropped", req: Request{PlayerID: actor, ActionType: "Work", TargetID: &nilTarget}, want: models.ActionWork},
		{name: "unknown", req: Request{PlayerID: actor, ActionType: "dance"}, wantErr: ErrUnknownAction},
		{name: "empty", req: Request{PlayerID: actor}, wantErr: ErrUnknownAction},
		{name: "hack without target", req: Request{PlayerID: actor, ActionType: "Hack"}, wantErr: ErrTargetRequired},
		{name: "work with target", req: Request{PlayerID: actor, ActionType: "Work", TargetID: &target}, wantErr: ErrTargetNotAllowed},
		{name: "sabotage self", req: Request{PlayerID: actor, ActionType: "Sabotage", TargetID: &actor}, wantErr: ErrSelfTarget},
		{name: "negative cost", req: Request{PlayerID: actor, ActionType: "Work", ResourceCost: models.ResourceCost{Battery: -1}}, wantErr: ErrNegativeCost},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Parse(tc.req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if v.Schema.Type != tc.want {
				t.Fatalf("expected type %s, got %s", tc.want, v.Schema.Type)
			}
		})
	}
}

func TestParse_NilTargetNormalised(t *testing.T) {
	nilTarget := uuid.Nil
	v, err := Parse(Request{ActionType: "Analyze", TargetID: &nilTarget})
	if err != nil {
		t.Fatal(err)
	}
	if v.TargetID != nil {
		t.Fatalf("expected nil target, got %v", v.TargetID)
	}
}

func TestSchemas_CoverEveryActionType(t *testing.T) {
	for _, at := range models.ActionTypes {
		if _, ok := SchemaFor(at); !ok {
			t.Errorf("missing schema for %s", at)
		}
	}
}
