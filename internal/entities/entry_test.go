package entities_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
)

type EntryTestSuite struct {
	suite.Suite
}

func TestEntrySuite(t *testing.T) {
	suite.Run(t, new(EntryTestSuite))
}

func (s *EntryTestSuite) TestNewFieldsKeepsOrder() {
	fields, err := entities.NewFields("b", "2", "a", "1", "c", "3")
	s.Require().NoError(err)

	s.Assert().Equal(entities.Fields{{"b", "2"}, {"a", "1"}, {"c", "3"}}, fields)
	s.Assert().Equal([]interface{}{"b", "2", "a", "1", "c", "3"}, fields.Args())
}

func (s *EntryTestSuite) TestNewFieldsOddCount() {
	_, err := entities.NewFields("a", "1", "b")
	s.Assert().True(errors.IsInvalidArgument(err))
}

func (s *EntryTestSuite) TestValidate() {
	testCases := []struct {
		name      string
		fields    entities.Fields
		shouldErr bool
	}{
		{"single pair", entities.Fields{{"val", "0"}}, false},
		{"empty value allowed", entities.Fields{{"val", ""}}, false},
		{"no pairs", entities.Fields{}, true},
		{"nil", nil, true},
		{"blank key", entities.Fields{{"val", "0"}, {"", "x"}}, true},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			err := tc.fields.Validate()
			if tc.shouldErr {
				s.Assert().True(errors.IsInvalidArgument(err))
			} else {
				s.Assert().NoError(err)
			}
		})
	}
}

func (s *EntryTestSuite) TestGetAndMap() {
	fields := entities.Fields{{"val", "1"}, {"src", "writer"}, {"val", "2"}}

	v, ok := fields.Get("val")
	s.Assert().True(ok)
	s.Assert().Equal("1", v)

	_, ok = fields.Get("missing")
	s.Assert().False(ok)

	s.Assert().Equal(map[string]string{"val": "2", "src": "writer"}, fields.Map())
}

func (s *EntryTestSuite) TestCloneIsIndependent() {
	entry := entities.LogEntry{ID: entities.NewStreamID(1, 0), Fields: entities.Fields{{"val", "0"}}}
	clone := entry.Clone()
	clone.Fields[0].Value = "changed"

	s.Assert().Equal("0", entry.Fields[0].Value)
	s.Assert().Nil(entities.Fields(nil).Clone())
}
