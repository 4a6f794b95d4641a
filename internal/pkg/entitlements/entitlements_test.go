package entitlements

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{"pro", PlanPro},
		{" PRO ", PlanPro},
		{"business", PlanBusiness},
		{"free", PlanFree},
		{"", PlanFree},
		{"enterprise", PlanFree},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRankOrdering(t *testing.T) {
	if !(Rank(PlanFree) < Rank(PlanPro) && Rank(PlanPro) < Rank(PlanBusiness)) {
		t.Fatalf("plan ranks out of order: free=%d pro=%d business=%d",
			Rank(PlanFree), Rank(PlanPro), Rank(PlanBusiness))
	}
}

func TestFeaturesFor(t *testing.T) {
	free := FeaturesFor(PlanFree)
	pro := FeaturesFor(PlanPro)
	business := FeaturesFor(PlanBusiness)

	if free.CustomDomains || free.PrioritySupport {
		t.Fatalf("free plan should not unlock premium features: %+v", free)
	}
	if !pro.CustomDomains || pro.PrioritySupport {
		t.Fatalf("pro plan features wrong: %+v", pro)
	}
	if !business.CustomDomains || !business.PrioritySupport {
		t.Fatalf("business plan features wrong: %+v", business)
	}

	if !(free.MaxProjects < pro.MaxProjects && pro.MaxProjects < business.MaxProjects) {
		t.Fatalf("project limits should grow with the plan: %d %d %d",
			free.MaxProjects, pro.MaxProjects, business.MaxProjects)
	}
	if !(free.APIRequestsPerMin < pro.APIRequestsPerMin && pro.APIRequestsPerMin < business.APIRequestsPerMin) {
		t.Fatalf("rate limits should grow with the plan: %d %d %d",
			free.APIRequestsPerMin, pro.APIRequestsPerMin, business.APIRequestsPerMin)
	}

	// Unknown plans fall back to free limits.
	if FeaturesFor(Plan("enterprise")) != free {
		t.Fatalf("unknown plan should get free features")
	}
}
