package payment

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/paystack"
)

const testSecret = "sk_test_4f9a0c2b"

type fakeSecrets struct {
	secret string
	err    error
}

func (f *fakeSecrets) SecretForServerUse(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.secret, nil
}

// spyProcessor records every outbound call.
type spyProcessor struct {
	mu sync.Mutex

	initResp *paystack.InitializeResponse
	initErr  error
	initReqs []paystack.InitializeRequest

	verifyTx       *paystack.Transaction
	verifyErr      error
	verifyCalls    int
	blankReference bool
}

func (p *spyProcessor) InitializeTransaction(_ context.Context, _ string, req paystack.InitializeRequest) (*paystack.InitializeResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initReqs = append(p.initReqs, req)
	if p.initErr != nil {
		return nil, p.initErr
	}
	if p.initResp != nil {
		return p.initResp, nil
	}
	return &paystack.InitializeResponse{
		AuthorizationURL: "https://checkout.paystack.test/" + req.Reference,
		AccessCode:       "acc_" + req.Reference[len(req.Reference)-4:],
		Reference:        req.Reference,
	}, nil
}

func (p *spyProcessor) VerifyTransaction(_ context.Context, _ string, reference string) (*paystack.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyCalls++
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	if p.verifyTx == nil {
		return nil, nil
	}
	tx := *p.verifyTx
	if tx.Reference == "" && !p.blankReference {
		tx.Reference = reference
	}
	return &tx, nil
}

func (p *spyProcessor) initCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.initReqs)
}

func (p *spyProcessor) verifies() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verifyCalls
}

type fakeCourses map[uint]*models.Course

func (f fakeCourses) GetByID(_ context.Context, id uint) (*models.Course, error) {
	c, ok := f[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

// failingEnrollments fails every storage call with err.
type failingEnrollments struct{ err error }

func (f failingEnrollments) Exists(context.Context, uint, uint) (bool, error) {
	return false, f.err
}

func (f failingEnrollments) Enroll(context.Context, uint, uint) (*models.Enrollment, bool, error) {
	return nil, false, f.err
}
