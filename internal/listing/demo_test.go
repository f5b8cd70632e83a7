package listing

import (
	"context"
	"testing"

	"github.com/hitoshi/ecofinds/internal/model"
)

func TestSeedDemo_CreatesDemoListings(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	n, err := svc.SeedDemo(ctx)
	if err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}

	all, _ := repo.ListAll(ctx)
	if len(all) != 3 {
		t.Fatalf("stored = %d, want 3", len(all))
	}
	for _, l := range all {
		if l.SellerID != DemoSellerID {
			t.Errorf("SellerID = %q, want %q", l.SellerID, DemoSellerID)
		}
		if !model.IsValidCategory(l.Category) {
			t.Errorf("demo listing %q has invalid category %q", l.Title, l.Category)
		}
		if !l.Price.IsPositive() {
			t.Errorf("demo listing %q has non-positive price", l.Title)
		}
	}

	// 作成日時がずらしてあり、一覧は定義順になる
	listed, _ := svc.List(ctx, model.ListingFilter{})
	want := []string{"Vintage Leather Jacket", "MacBook Air (Pre-owned)", "Ceramic Planter Set"}
	if !equalStrings(titles(listed), want) {
		t.Errorf("List = %v, want %v", titles(listed), want)
	}
}
