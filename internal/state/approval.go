package state

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redevirtus/virtus/internal/model"
)

const minPasswordLength = 6

// Signup messages shown to the applicant.
const (
	msgMissingFields = "Por favor, preencha todos os campos."
	msgShortPassword = "A senha deve ter pelo menos 6 caracteres."
	msgInvalidCode   = "Código de convite inválido ou já utilizado."
	msgInvalidLink   = "Código de convite inválido ou expirado."
	msgEmailTaken    = "Este e-mail já está cadastrado."
	msgBadEmail      = "Informe um e-mail válido."
	msgBadActivity   = "Atividade ou dia da semana inválido."
)

// ValidateSignupFields checks the applicant's raw form input before the
// password is hashed.
func ValidateSignupFields(name, email, password string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return invalid(msgMissingFields)
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return invalid(msgShortPassword)
	}
	if !strings.Contains(email, "@") {
		return invalid(msgBadEmail)
	}
	return nil
}

// SignupInput is a validated signup form admitted through an invite.
type SignupInput struct {
	Invite         model.InviteRef
	Name           string
	Email          string
	PasswordHash   string
	CommitmentDate time.Time
	Activities     []model.Participation
}

// SubmitSignup checks the invite and the applicant's email and activity
// choices, then queues the applicant for approval by the invite's creator.
func (s *Store) SubmitSignup(ctx context.Context, in SignupInput) (model.PendingSignup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var leaderID string
	switch in.Invite.Kind {
	case model.InviteKindCode:
		i, ok := s.usableCode(in.Invite.Value)
		if !ok {
			return model.PendingSignup{}, invalid(msgInvalidCode)
		}
		leaderID = s.codes[i].CreatedBy
	case model.InviteKindLink:
		i, ok := s.usableLink(in.Invite.Value)
		if !ok {
			return model.PendingSignup{}, invalid(msgInvalidLink)
		}
		leaderID = s.links[i].CreatedBy
	default:
		return model.PendingSignup{}, invalid(msgInvalidCode)
	}

	if s.emailTaken(in.Email) {
		return model.PendingSignup{}, invalid(msgEmailTaken)
	}
	for _, p := range in.Activities {
		if !s.validParticipation(p) {
			return model.PendingSignup{}, invalid(msgBadActivity)
		}
	}

	invite := in.Invite
	p := model.PendingSignup{
		Email:          strings.TrimSpace(in.Email),
		Name:           strings.TrimSpace(in.Name),
		CommitmentDate: in.CommitmentDate,
		LeaderID:       leaderID,
		Activities:     slices.Clone(in.Activities),
		PasswordHash:   in.PasswordHash,
		Invite:         &invite,
	}
	return s.addPending(ctx, p)
}

// AddPendingSignup appends candidate with status pending. Missing id,
// creation time and commitment date are filled in.
func (s *Store) AddPendingSignup(ctx context.Context, candidate model.PendingSignup) (model.PendingSignup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPending(ctx, candidate)
}

func (s *Store) addPending(ctx context.Context, p model.PendingSignup) (model.PendingSignup, error) {
	now := s.now()
	if p.ID == "" {
		p.ID = newID(now)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.CommitmentDate.IsZero() {
		p.CommitmentDate = now
	}
	if p.Activities == nil {
		p.Activities = []model.Participation{}
	}
	for i := range p.Activities {
		p.Activities[i].MemberID = p.ID
	}
	p.Status = model.SignupPending
	p.ApprovedAt = nil

	s.pending = append(s.pending, p)
	if err := s.save(ctx, KeyPending, s.pending); err != nil {
		return model.PendingSignup{}, err
	}
	return p, nil
}

func (s *Store) emailTaken(email string) bool {
	email = normalizeEmail(email)
	for _, m := range s.members {
		if normalizeEmail(m.Email) == email {
			return true
		}
	}
	for _, p := range s.pending {
		if p.Status == model.SignupPending && normalizeEmail(p.Email) == email {
			return true
		}
	}
	return false
}

func (s *Store) validParticipation(p model.Participation) bool {
	if p.DayOfWeek < time.Sunday || p.DayOfWeek > time.Saturday {
		return false
	}
	return slices.ContainsFunc(s.activities, func(a model.ParishActivity) bool {
		return a.ID == p.ActivityID && a.HeldOn(p.DayOfWeek)
	})
}

// PendingSignups returns the signups with status, or every signup when
// status is empty.
func (s *Store) PendingSignups(status model.SignupStatus) []model.PendingSignup {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PendingSignup
	for _, p := range s.pending {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// ApprovePendingSignup turns a pending signup into a member. Signups that
// were already approved or rejected are left alone.
func (s *Store) ApprovePendingSignup(ctx context.Context, id string) (Outcome, model.Member, error) {
	s.mu.Lock()

	i := slices.IndexFunc(s.pending, func(p model.PendingSignup) bool { return p.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return NotFound, model.Member{}, nil
	}
	p := s.pending[i]
	if p.Status != model.SignupPending {
		s.mu.Unlock()
		return AlreadyResolved, model.Member{}, nil
	}

	now := s.now()
	m := model.Member{
		ID:             p.ID,
		Email:          p.Email,
		Name:           p.Name,
		CommitmentDate: p.CommitmentDate,
		LeaderID:       p.LeaderID,
		SpiritualLevel: 1,
		Activities:     slices.Clone(p.Activities),
		PasswordHash:   p.PasswordHash,
	}
	s.members = append(s.members, m)
	s.pending[i].Status = model.SignupApproved
	s.pending[i].ApprovedAt = &now

	var consumedKey string
	if s.consumeOnApproval {
		consumedKey, _ = s.consumeInvite(p.Invite, m.ID, now)
	}

	err := s.save(ctx, KeyMembers, s.members)
	if perr := s.save(ctx, KeyPending, s.pending); err == nil {
		err = perr
	}
	switch consumedKey {
	case KeyCodes:
		if cerr := s.save(ctx, KeyCodes, s.codes); err == nil {
			err = cerr
		}
	case KeyLinks:
		if lerr := s.save(ctx, KeyLinks, s.links); err == nil {
			err = lerr
		}
	}
	s.mu.Unlock()

	s.notifyMember(ctx, &m)
	return Updated, m, err
}

// RejectPendingSignup marks a pending signup as rejected.
func (s *Store) RejectPendingSignup(ctx context.Context, id string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.pending, func(p model.PendingSignup) bool { return p.ID == id })
	if i < 0 {
		return NotFound, nil
	}
	if s.pending[i].Status != model.SignupPending {
		return AlreadyResolved, nil
	}
	s.pending[i].Status = model.SignupRejected
	return Updated, s.save(ctx, KeyPending, s.pending)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
