package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDomainConfig() DomainConfig {
	return DomainConfig{
		Days:        []string{"Monday", "Tuesday"},
		SlotsPerDay: 2,
		Rooms: []Room{
			{Name: "R101", Capacity: 300, Type: "classroom", Equipment: []string{"projector"}},
			{Name: "R102", Capacity: 300, Type: "lab", Equipment: []string{"computers"}},
		},
		Topics:       []string{"Algorithms", "Databases"},
		SessionTypes: []string{SessionTheory, SessionPractical, SessionTest},
		Teachers: map[string][]Teacher{
			"Algorithms": {
				{Name: "Adams", Expertise: []string{SessionTheory, SessionTest}},
				{Name: "Baker", Expertise: []string{SessionPractical}},
			},
			"Databases": {
				{Name: "Clark", Expertise: []string{SessionTheory}},
				{Name: "Diaz", Expertise: []string{SessionPractical, SessionTest}},
			},
		},
		Preferences: map[string]SessionPreference{
			SessionTheory:    {PreferredSlots: []int{0, 1}},
			SessionPractical: {PreferredSlots: []int{1}, PreferredRooms: []string{"R102"}},
			SessionTest:      {PreferredSlots: []int{0, 1}},
		},
		TotalAttendees: 500,
	}
}

func newTestDomain(t *testing.T) *Domain {
	t.Helper()
	domain, err := NewDomain(testDomainConfig())
	require.NoError(t, err)
	return domain
}

func TestNewDomainBuildsOrderedKeys(t *testing.T) {
	domain := newTestDomain(t)

	keys := domain.Keys()
	require.Len(t, keys, 6)
	assert.Equal(t, SessionKey{Topic: "Algorithms", SessionType: SessionTheory}, keys[0])
	assert.Equal(t, SessionKey{Topic: "Databases", SessionType: SessionTest}, keys[5])
	assert.Equal(t, 2, domain.InstancesPerSession())
}

func TestNewDomainCollectsAllProblems(t *testing.T) {
	cfg := testDomainConfig()
	cfg.Rooms = []Room{{Name: "", Capacity: 0}}
	cfg.Teachers = map[string][]Teacher{"Algorithms": cfg.Teachers["Algorithms"]}
	delete(cfg.Preferences, SessionTest)

	_, err := NewDomain(cfg)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.GreaterOrEqual(t, len(cfgErr.Problems), 4)
	assert.Contains(t, err.Error(), "no teachers defined for topic Databases")
	assert.Contains(t, err.Error(), "no preferences defined for session type Test")
}

func TestNewDomainRejectsCapacityBelowAttendees(t *testing.T) {
	cfg := testDomainConfig()
	cfg.TotalAttendees = 10000

	_, err := NewDomain(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below total attendees")
}

func TestRandomTeacherPrefersExpertise(t *testing.T) {
	domain := newTestDomain(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		assert.Equal(t, "Baker", domain.RandomTeacher(rng, "Algorithms", SessionPractical))
	}
	// No teacher lists History expertise, so any topic teacher may serve.
	name := domain.RandomTeacher(rng, "Algorithms", SessionHistory)
	assert.Contains(t, []string{"Adams", "Baker"}, name)
}

func TestPreferredRoomsFiltersUnknown(t *testing.T) {
	cfg := testDomainConfig()
	cfg.Preferences[SessionTheory] = SessionPreference{PreferredRooms: []string{"R102", "R999"}}
	domain, err := NewDomain(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"R102"}, domain.PreferredRooms(SessionTheory))
	assert.Equal(t, domain.RoomNames(), domain.PreferredRooms(SessionPractical))
}

func TestTimeOrderingViolated(t *testing.T) {
	domain := newTestDomain(t)

	c := NewChromosome(domain.Keys())
	c[SessionKey{Topic: "Algorithms", SessionType: SessionTheory}] = []Assignment{{Day: 0, Slot: 0, Room: "R101", Teacher: "Adams"}}
	c[SessionKey{Topic: "Algorithms", SessionType: SessionPractical}] = []Assignment{{Day: 0, Slot: 1, Room: "R101", Teacher: "Baker"}}
	c[SessionKey{Topic: "Algorithms", SessionType: SessionTest}] = []Assignment{{Day: 1, Slot: 0, Room: "R101", Teacher: "Adams"}}
	assert.False(t, domain.TimeOrderingViolated(c, "Algorithms"))

	// Practical before Theory.
	c[SessionKey{Topic: "Algorithms", SessionType: SessionPractical}][0] = Assignment{Day: 0, Slot: 0, Room: "R101", Teacher: "Baker"}
	assert.True(t, domain.TimeOrderingViolated(c, "Algorithms"))

	// A missing stage counts as violated.
	assert.True(t, domain.TimeOrderingViolated(c, "Databases"))
}
