package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/barberia-elite/internal/forms"
	"github.com/wolfman30/barberia-elite/internal/leads"
	"github.com/wolfman30/barberia-elite/internal/validation"
	"github.com/wolfman30/barberia-elite/pkg/logging"
)

// Service tells the shop about new leads.
type Service struct {
	email     EmailSender
	shopEmail string
	shopName  string
	defs      forms.Definitions
	loc       *time.Location
	logger    *logging.Logger
}

// ServiceConfig configures the shop inbox.
type ServiceConfig struct {
	ShopEmail string
	ShopName  string
	// Definitions order the fields in the message body. Optional.
	Definitions forms.Definitions
	Location    *time.Location
}

// NewService creates a notification service. A nil sender or an empty shop
// address disables delivery.
func NewService(email EmailSender, cfg ServiceConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ShopName == "" {
		cfg.ShopName = DefaultFromName
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		email:     email,
		shopEmail: strings.TrimSpace(cfg.ShopEmail),
		shopName:  cfg.ShopName,
		defs:      cfg.Definitions,
		loc:       cfg.Location,
		logger:    logger,
	}
}

var _ leads.Notifier = (*Service)(nil)

// LeadReceived emails a plain text summary of lead to the shop.
func (s *Service) LeadReceived(ctx context.Context, lead *leads.Lead) error {
	if lead == nil {
		return nil
	}
	if s.email == nil || s.shopEmail == "" {
		s.logger.Debug("notify: email not configured, skipping lead notification", "lead_id", lead.ID)
		return nil
	}

	msg := EmailMessage{
		To:       s.shopEmail,
		ToName:   s.shopName,
		Subject:  s.subject(lead),
		Body:     s.body(lead),
		ReplyTo:  s.replyTo(lead),
		Category: lead.Form,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: failed to send email", "error", err, "lead_id", lead.ID)
		return fmt.Errorf("notify: send lead email: %w", err)
	}
	s.logger.Info("notify: lead email sent", "lead_id", lead.ID, "form", lead.Form)
	return nil
}

// replyTo lets the shop answer the customer directly when they left an address.
func (s *Service) replyTo(lead *leads.Lead) string {
	addr := strings.TrimSpace(lead.Value("email"))
	if !validation.ValidateEmail(addr) {
		return ""
	}
	return addr
}

func (s *Service) subject(lead *leads.Lead) string {
	switch lead.Kind {
	case forms.KindReservation:
		return fmt.Sprintf("Nueva reserva - %s", lead.Value("nombre"))
	case forms.KindContact:
		return fmt.Sprintf("Nuevo mensaje - %s", lead.Value("nombre"))
	case forms.KindNewsletter:
		return fmt.Sprintf("Nuevo suscriptor - %s", lead.Value("email"))
	default:
		return fmt.Sprintf("Nuevo formulario - %s", lead.Form)
	}
}

func (s *Service) body(lead *leads.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Formulario: %s\n", lead.Form)
	fmt.Fprintf(&b, "Recibido: %s\n\n", lead.ReceivedAt.In(s.loc).Format("02/01/2006 15:04"))
	for _, name := range s.fieldOrder(lead) {
		value := lead.Fields[name]
		if value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", name, value)
	}
	fmt.Fprintf(&b, "\nID: %s\n\nSaludos,\n%s", lead.ID, s.shopName)
	return b.String()
}

func (s *Service) fieldOrder(lead *leads.Lead) []string {
	if def, err := s.defs.Lookup(lead.Form); err == nil {
		return def.FieldNames()
	}
	names := make([]string, 0, len(lead.Fields))
	for name := range lead.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
