package service

import (
	"context"
	"elearn_backend/internal/model"
	"elearn_backend/internal/repository"
	"elearn_backend/internal/util"
	"fmt"
	"io"
	"strings"
	"time"
)

const MaxAvatarSize = 2 << 20

// UserService 处理用户资料
type UserService struct {
	UserRepo *repository.UserRepository
	Storage  Uploader
}

func NewUserService(userRepo *repository.UserRepository, storage Uploader) *UserService {
	return &UserService{
		UserRepo: userRepo,
		Storage:  storage,
	}
}

type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

// GetProfile 获取当前用户信息
func (s *UserService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, notFoundOr(err, util.ErrUserNotFound)
	}
	return user, nil
}

// UpdateProfile 更新名称和头像，统计字段不可由用户修改
func (s *UserService) UpdateProfile(userID uint, req UpdateProfileRequest) (*model.User, error) {
	user, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, util.NewValidation("name must not be empty")
		}
		user.Name = name
	}
	if req.Avatar != nil {
		user.Avatar = *req.Avatar
	}

	if err := s.UserRepo.UpdateProfile(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadAvatar 校验图片内容后上传并更新头像地址
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, src io.Reader, size int64, filename string) (*model.User, error) {
	if size <= 0 || size > MaxAvatarSize {
		return nil, util.NewValidation("avatar must be between 1 byte and %d bytes", MaxAvatarSize)
	}

	user, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	mimeType, reader, err := util.SniffMimeType(src, util.AvatarMimeTypes)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%d/%s%s", userID, time.Now().Format("20060102150405"), util.ExtensionFor(mimeType, filename))
	url, err := s.Storage.Upload(ctx, key, reader, size, mimeType)
	if err != nil {
		return nil, util.NewServiceUnavailable("avatar storage unavailable", err)
	}

	user.Avatar = url
	if err := s.UserRepo.UpdateProfile(user); err != nil {
		return nil, err
	}
	return user, nil
}
