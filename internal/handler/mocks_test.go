package handler

import (
	"context"
	"sync"

	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/user"
)

// --- セッション ---

type fakeSession struct {
	mu   sync.Mutex
	user *model.UserProfile
}

func (s *fakeSession) GetUser() *model.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

func (s *fakeSession) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

func (s *fakeSession) IsSuperuser() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil && s.user.IsSuperuser
}

func (s *fakeSession) set(u *model.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// --- 認証 ---

type mockAuthService struct {
	loginFn         func(ctx context.Context, form model.LoginForm) bool
	logoutFn        func() bool
	sendInitCodeFn  func(ctx context.Context, form model.InitCodeForm) bool
	registerFn      func(ctx context.Context, form model.RegisterForm) bool
	resetPasswordFn func(ctx context.Context, params model.ResetPasswordParams) bool
	activateUserFn  func(ctx context.Context, params model.ActiveUserParams) bool
}

func (m *mockAuthService) Login(ctx context.Context, form model.LoginForm) bool {
	if m.loginFn != nil {
		return m.loginFn(ctx, form)
	}
	return true
}

func (m *mockAuthService) Logout() bool {
	if m.logoutFn != nil {
		return m.logoutFn()
	}
	return true
}

func (m *mockAuthService) SendInitCode(ctx context.Context, form model.InitCodeForm) bool {
	if m.sendInitCodeFn != nil {
		return m.sendInitCodeFn(ctx, form)
	}
	return true
}

func (m *mockAuthService) Register(ctx context.Context, form model.RegisterForm) bool {
	if m.registerFn != nil {
		return m.registerFn(ctx, form)
	}
	return true
}

func (m *mockAuthService) ResetPassword(ctx context.Context, params model.ResetPasswordParams) bool {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, params)
	}
	return true
}

func (m *mockAuthService) ActivateUser(ctx context.Context, params model.ActiveUserParams) bool {
	if m.activateUserFn != nil {
		return m.activateUserFn(ctx, params)
	}
	return true
}

// --- ユーザー ---

type mockUserService struct {
	users            []model.UserProfile
	agreeUserFn      func(ctx context.Context, params model.AgreeUserParams) bool
	deleteUserFn     func(ctx context.Context, uid string) bool
	updateUserInfoFn func(ctx context.Context, form model.UserForm) bool
	validateAvatarFn func(file user.AvatarFile) bool
	uploadAvatarFn   func(ctx context.Context, file user.AvatarFile) *model.UploadResponse
}

func (m *mockUserService) Users() []model.UserProfile { return m.users }

func (m *mockUserService) GetUsers(ctx context.Context) {}

func (m *mockUserService) AgreeUser(ctx context.Context, params model.AgreeUserParams) bool {
	if m.agreeUserFn != nil {
		return m.agreeUserFn(ctx, params)
	}
	return true
}

func (m *mockUserService) DeleteUser(ctx context.Context, uid string) bool {
	if m.deleteUserFn != nil {
		return m.deleteUserFn(ctx, uid)
	}
	return true
}

func (m *mockUserService) UpdateUserInfo(ctx context.Context, form model.UserForm) bool {
	if m.updateUserInfoFn != nil {
		return m.updateUserInfoFn(ctx, form)
	}
	return true
}

func (m *mockUserService) ValidateAvatar(file user.AvatarFile) bool {
	if m.validateAvatarFn != nil {
		return m.validateAvatarFn(file)
	}
	return user.CheckAvatar(file.ContentType, file.Size) == nil
}

func (m *mockUserService) UploadAvatar(ctx context.Context, file user.AvatarFile) *model.UploadResponse {
	if m.uploadAvatarFn != nil {
		return m.uploadAvatarFn(ctx, file)
	}
	return &model.UploadResponse{URL: "/media/avatar/" + file.Name}
}

// --- ブログ ---

type mockBlogHook struct {
	blogs      []model.Blog
	cursor     model.PageCursor
	query      model.BlogQuery
	detail     *model.Blog
	categories []model.Category
	tags       []model.Tag

	// getBlogsFn は取得に成功したかを返す。失敗時は query を更新しない。
	getBlogsFn      func(ctx context.Context, q model.BlogQuery) bool
	getBlogDetailFn func(ctx context.Context, id int64) (*model.Blog, error)
	submitCommentFn func(ctx context.Context, blogID int64, content string) error
	deleteBlogFn    func(ctx context.Context, id int64) error
	toggleTopFn     func(ctx context.Context, id int64) bool

	mu         sync.Mutex
	viewed     []int64
	taxonomyOK bool
}

func (m *mockBlogHook) GetBlogs(ctx context.Context, q model.BlogQuery) {
	if m.getBlogsFn != nil && !m.getBlogsFn(ctx, q) {
		return
	}
	m.query = q
}
func (m *mockBlogHook) Blogs() []model.Blog      { return m.blogs }
func (m *mockBlogHook) Cursor() model.PageCursor { return m.cursor }
func (m *mockBlogHook) Query() model.BlogQuery   { return m.query }
func (m *mockBlogHook) Detail() *model.Blog      { return m.detail }

func (m *mockBlogHook) GetBlogDetail(ctx context.Context, id int64) (*model.Blog, error) {
	if m.getBlogDetailFn != nil {
		return m.getBlogDetailFn(ctx, id)
	}
	return &model.Blog{ID: id}, nil
}

func (m *mockBlogHook) ViewBlog(ctx context.Context, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewed = append(m.viewed, id)
}

func (m *mockBlogHook) SubmitComment(ctx context.Context, blogID int64, content string) error {
	if m.submitCommentFn != nil {
		if err := m.submitCommentFn(ctx, blogID, content); err != nil {
			return err
		}
	}
	m.detail = &model.Blog{ID: blogID, Comments: []model.Comment{{ID: 1, Content: content}}}
	return nil
}

func (m *mockBlogHook) DeleteComment(ctx context.Context, blogID, commentID int64) bool { return true }
func (m *mockBlogHook) CreateBlog(ctx context.Context, in model.BlogInput) bool         { return true }
func (m *mockBlogHook) UpdateBlog(ctx context.Context, id int64, in model.BlogInput) bool {
	return true
}

func (m *mockBlogHook) DeleteBlog(ctx context.Context, id int64) error {
	if m.deleteBlogFn != nil {
		return m.deleteBlogFn(ctx, id)
	}
	return nil
}

func (m *mockBlogHook) ToggleTop(ctx context.Context, id int64) bool {
	if m.toggleTopFn != nil {
		return m.toggleTopFn(ctx, id)
	}
	return true
}

func (m *mockBlogHook) GetCategoriesAndTags(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taxonomyOK = true
	return nil
}
func (m *mockBlogHook) Categories() []model.Category { return m.categories }
func (m *mockBlogHook) Tags() []model.Tag            { return m.tags }
func (m *mockBlogHook) CreateCategory(ctx context.Context, in model.TaxonomyInput) bool {
	m.categories = append(m.categories, model.Category{ID: int64(len(m.categories) + 1), Name: in.Name})
	return true
}
func (m *mockBlogHook) UpdateCategory(ctx context.Context, id int64, in model.TaxonomyInput) bool {
	return true
}
func (m *mockBlogHook) DeleteCategory(ctx context.Context, id int64) bool { return false }
func (m *mockBlogHook) CreateTag(ctx context.Context, in model.TaxonomyInput) bool {
	return true
}
func (m *mockBlogHook) UpdateTag(ctx context.Context, id int64, in model.TaxonomyInput) bool {
	return true
}
func (m *mockBlogHook) DeleteTag(ctx context.Context, id int64) bool { return true }

// --- 掲示板 ---

type replyCall struct {
	messageID   int64
	content     string
	parentReply *int64
}

type mockBoardHook struct {
	messages []model.Message
	page     int

	createReplyFn   func(ctx context.Context, messageID int64, content string, parentReply *int64) error
	createMessageFn func(ctx context.Context, content string) bool

	mu      sync.Mutex
	replies []replyCall
}

func (m *mockBoardHook) GetMessages(ctx context.Context, page int) {
	if page < 1 {
		page = 1
	}
	m.page = page
}
func (m *mockBoardHook) Messages() []model.Message {
	out := make([]model.Message, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg
		out[i].Replies = make([]model.Reply, len(msg.Replies))
		for j, rp := range msg.Replies {
			out[i].Replies[j] = rp
			out[i].Replies[j].Replies = append([]model.SubReply(nil), rp.Replies...)
		}
	}
	return out
}
func (m *mockBoardHook) Cursor() model.PageCursor { return model.PageCursor{Total: len(m.messages)} }
func (m *mockBoardHook) Page() int                { return m.page }

func (m *mockBoardHook) CreateMessage(ctx context.Context, content string) bool {
	if m.createMessageFn != nil {
		return m.createMessageFn(ctx, content)
	}
	return true
}

func (m *mockBoardHook) CreateReply(ctx context.Context, messageID int64, content string, parentReply *int64) error {
	m.mu.Lock()
	m.replies = append(m.replies, replyCall{messageID: messageID, content: content, parentReply: parentReply})
	m.mu.Unlock()
	if m.createReplyFn != nil {
		return m.createReplyFn(ctx, messageID, content, parentReply)
	}
	return nil
}

func (m *mockBoardHook) DeleteMessage(ctx context.Context, id int64) bool { return true }
func (m *mockBoardHook) DeleteReply(ctx context.Context, messageID, replyID int64) bool {
	return true
}

// --- ウェルカム・自己紹介 ---

type mockWelcomeHook struct {
	welcome model.Welcome
	onGet   func()
}

func (m *mockWelcomeHook) GetWelcome(ctx context.Context) {
	if m.onGet != nil {
		m.onGet()
	}
}
func (m *mockWelcomeHook) Welcome() model.Welcome { return m.welcome }
func (m *mockWelcomeHook) SaveWelcome(ctx context.Context, w model.Welcome) bool {
	m.welcome = w
	return true
}

type mockAboutmeHook struct {
	aboutme  model.Aboutme
	sections []model.Section
}

func (m *mockAboutmeHook) FetchAboutme(ctx context.Context) {}
func (m *mockAboutmeHook) Aboutme() model.Aboutme    { return m.aboutme }
func (m *mockAboutmeHook) Sections() []model.Section { return m.sections }
func (m *mockAboutmeHook) SaveAboutme(ctx context.Context, a model.Aboutme) bool {
	return false
}
