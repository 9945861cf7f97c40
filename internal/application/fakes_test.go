package application

import (
	"context"

	"mailrelay/internal/domain/model"
	"mailrelay/internal/domain/port/driven"
)

// --- fake OAuthProvider ---

type fakeProvider struct {
	authURL      string
	exchangeSet  *model.TokenSet
	exchangeErr  error
	refreshSet   *model.TokenSet
	refreshErr   error
	profile      *model.Profile
	profileErr   error
	refreshCalls int
	gotCode      string
	gotRefresh   string
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return f.authURL + "?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*model.TokenSet, error) {
	f.gotCode = code
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeSet, nil
}

func (f *fakeProvider) Refresh(_ context.Context, refreshToken string) (*model.TokenSet, error) {
	f.refreshCalls++
	f.gotRefresh = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshSet, nil
}

func (f *fakeProvider) FetchProfile(_ context.Context, _ string) (*model.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

// --- fake CredentialStore ---

type fakeCredStore struct {
	records   map[string]model.Credential
	order     []string
	getErr    error
	upsertErr error
	deleteErr error
	deleted   []string
}

func newFakeCredStore(creds ...model.Credential) *fakeCredStore {
	s := &fakeCredStore{records: map[string]model.Credential{}}
	for _, c := range creds {
		s.records[c.UserID] = c
		s.order = append(s.order, c.UserID)
	}
	return s
}

func (s *fakeCredStore) Get(_ context.Context, userID string) (*model.Credential, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	cred, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

func (s *fakeCredStore) GetFirst(_ context.Context) (*model.Credential, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if len(s.order) == 0 {
		return nil, nil
	}
	cred := s.records[s.order[0]]
	return &cred, nil
}

func (s *fakeCredStore) Upsert(_ context.Context, cred model.Credential) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if _, ok := s.records[cred.UserID]; !ok {
		s.order = append(s.order, cred.UserID)
	}
	s.records[cred.UserID] = cred
	return nil
}

func (s *fakeCredStore) Delete(_ context.Context, userID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, userID)
	if _, ok := s.records[userID]; ok {
		delete(s.records, userID)
		for i, id := range s.order {
			if id == userID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

var _ driven.CredentialStore = (*fakeCredStore)(nil)
var _ driven.OAuthProvider = (*fakeProvider)(nil)

// --- fake MailClient ---

type listResult struct {
	messages []model.Message
	err      error
}

// fakeMailClient replays canned responses in order, recording the bearer
// token of each call, so a test can make the first call 401 and the retry
// succeed.
type fakeMailClient struct {
	responses []listResult
	gotTokens []string
}

func (m *fakeMailClient) ListInbox(_ context.Context, accessToken string) ([]model.Message, error) {
	m.gotTokens = append(m.gotTokens, accessToken)
	if len(m.responses) == 0 {
		return nil, nil
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next.messages, next.err
}

var _ driven.MailClient = (*fakeMailClient)(nil)
