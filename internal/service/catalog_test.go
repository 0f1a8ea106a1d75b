package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadplan/timetable-api/internal/engine"
)

func TestNewCatalogValidatesDomain(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	domain := catalog.Domain()
	assert.Equal(t, 5, domain.DayCount())
	assert.Equal(t, 4, domain.SlotsPerDay())
	assert.Equal(t, 6, domain.InstancesPerSession())
	assert.Len(t, domain.Keys(), 16)
}

func TestCatalogSlotNames(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	assert.Equal(t, "08:00 - 10:00 (Morning)", catalog.SlotName(0))
	assert.Equal(t, "16:00 - 18:00 (Evening)", catalog.SlotName(3))
	assert.Equal(t, "Slot 5", catalog.SlotName(4))
	assert.Len(t, catalog.SlotNames(), 4)
}

func TestCatalogTopicNames(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	assert.Equal(t, "Mathematics", catalog.TopicName("A"))
	assert.Equal(t, "Biology", catalog.TopicName("D"))
	assert.Equal(t, "Z", catalog.TopicName("Z"))
}

func TestCatalogRoomCapacity(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	assert.Equal(t, 180, catalog.RoomCapacity("Amphitheater"))
	assert.Equal(t, 60, catalog.RoomCapacity("Classroom3"))
	assert.Equal(t, 0, catalog.RoomCapacity("Gym"))
}

func TestCatalogTeacherExpertiseSplit(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)
	domain := catalog.Domain()

	require.Len(t, domain.TeachersFor("A"), 2)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		assert.Equal(t, "A2", domain.RandomTeacher(rng, "A", engine.SessionPractical))
		assert.Equal(t, "A1", domain.RandomTeacher(rng, "A", engine.SessionTest))
	}
}
