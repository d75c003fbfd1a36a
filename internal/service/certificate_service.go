package service

import (
	"bytes"
	"context"
	"elearn_backend/internal/config"
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"
	"elearn_backend/internal/util"
	"elearn_backend/pkg/logger"
	"elearn_backend/pkg/monitoring"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"gorm.io/gorm"
)

const (
	certificateWidth  = 1600
	certificateHeight = 1131
)

// Uploader 证书图片的存储目标
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
}

type CertificateService struct {
	CertRepo *repository.CertificateRepository
	UserRepo *repository.UserRepository
	Storage  Uploader
	Issuer   string

	// ttf 为空时使用内置位图字体
	ttf *truetype.Font
	now func() time.Time
}

func NewCertificateService(
	certRepo *repository.CertificateRepository,
	userRepo *repository.UserRepository,
	storage Uploader,
	cfg config.CertificateConfig,
) (*CertificateService, error) {
	s := &CertificateService{
		CertRepo: certRepo,
		UserRepo: userRepo,
		Storage:  storage,
		Issuer:   cfg.Issuer,
		now:      time.Now,
	}

	if cfg.FontPath != "" {
		ttf, err := loadFont(cfg.FontPath)
		if err != nil {
			return nil, fmt.Errorf("could not load certificate font: %w", err)
		}
		s.ttf = ttf
	}
	return s, nil
}

func loadFont(fontPath string) (*truetype.Font, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return parsedFont, nil
}

// face 每次渲染新建，truetype 的 Face 带缓存，不能跨协程共享
func (s *CertificateService) face(size float64) font.Face {
	if s.ttf == nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(s.ttf, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// IssueForAttempt 为通过的尝试颁发证书，同一用户同一课程只颁发一次
func (s *CertificateService) IssueForAttempt(ctx context.Context, attempt *model.QuizAttempt, program *model.Program) (*model.Certificate, error) {
	existing, err := s.CertRepo.FindByUserAndProgram(attempt.UserID, program.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user, err := s.UserRepo.FindByID(attempt.UserID)
	if err != nil {
		return nil, notFoundOr(err, util.ErrUserNotFound)
	}

	cert := &model.Certificate{
		Serial:        model.GenerateUUID(),
		UserID:        user.ID,
		ProgramID:     program.ID,
		AttemptID:     attempt.ID,
		RecipientName: user.Name,
		ProgramName:   program.Name,
		Percentage:    attempt.Percentage,
		IssuedAt:      s.now(),
	}

	buf, err := s.Render(cert)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("certificates/%d/%s.png", cert.UserID, cert.Serial)
	url, err := s.Storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), util.MimePNG)
	if err != nil {
		return nil, fmt.Errorf("failed to upload certificate: %w", err)
	}
	cert.URL = url

	if err := s.CertRepo.Create(cert); err != nil {
		return nil, err
	}

	monitoring.CertificatesIssued.Inc()
	logger.Log.Info("Certificate issued",
		zap.String("serial", cert.Serial),
		zap.Uint("userId", cert.UserID),
		zap.Uint("programId", cert.ProgramID))
	return cert, nil
}

// Render 生成证书 PNG
func (s *CertificateService) Render(cert *model.Certificate) (bytes.Buffer, error) {
	const w, h = float64(certificateWidth), float64(certificateHeight)
	dc := gg.NewContext(certificateWidth, certificateHeight)

	dc.SetColor(color.NRGBA{R: 0xFB, G: 0xF8, B: 0xEF, A: 0xFF})
	dc.Clear()

	dc.SetColor(color.NRGBA{R: 0x1F, G: 0x3A, B: 0x5F, A: 0xFF})
	dc.SetLineWidth(12)
	dc.DrawRectangle(40, 40, w-80, h-80)
	dc.Stroke()
	dc.SetLineWidth(3)
	dc.DrawRectangle(70, 70, w-140, h-140)
	dc.Stroke()

	titleFace, bodyFace := s.face(64), s.face(32)
	dc.SetFontFace(titleFace)
	dc.DrawStringAnchored("Certificate of Completion", w/2, h*0.22, 0.5, 0.5)
	dc.DrawStringAnchored(cert.RecipientName, w/2, h*0.42, 0.5, 0.5)

	dc.SetFontFace(bodyFace)
	dc.SetColor(color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xFF})
	dc.DrawStringAnchored("has successfully passed the final exam of", w/2, h*0.52, 0.5, 0.5)
	dc.DrawStringAnchored(cert.ProgramName, w/2, h*0.60, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("Score: %d%%", cert.Percentage), w/2, h*0.68, 0.5, 0.5)
	dc.DrawStringAnchored(cert.IssuedAt.Format(util.DateFormat), w*0.25, h*0.82, 0.5, 0.5)
	dc.DrawStringAnchored(s.Issuer, w*0.75, h*0.82, 0.5, 0.5)
	dc.DrawStringAnchored("Serial "+cert.Serial, w/2, h*0.90, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

func (s *CertificateService) ListForUser(userID uint) ([]model.Certificate, error) {
	return s.CertRepo.ListByUser(userID)
}

// Verify 按序列号公开校验证书
func (s *CertificateService) Verify(serial string) (*model.Certificate, error) {
	cert, err := s.CertRepo.FindBySerial(serial)
	if err != nil {
		return nil, notFoundOr(err, util.ErrCertificateNotFound)
	}
	return cert, nil
}
