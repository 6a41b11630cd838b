// Package guard は画面遷移ごとにセッションを参照して遷移の可否を判定するルートガードを提供する。
//
// 判定はセッションストアのみに依存し、バックエンドへの問い合わせは行わない。
// 遷移のたびに評価し直すため、別プロセスによるストレージ削除も次の遷移で反映される。
package guard

import "strings"

// Policy はルートに要求するアクセス条件。
type Policy int

const (
	// Public は誰でも遷移できる。
	Public Policy = iota
	// GuestOnly は未ログインの場合のみ遷移できる。ログイン済みなら home へ。
	GuestOnly
	// Authenticated はログイン済みの場合のみ遷移できる。未ログインなら login へ。
	Authenticated
	// Superuser はログイン済みかつ管理者の場合のみ遷移できる。それ以外は login へ。
	Superuser
)

func (p Policy) String() string {
	switch p {
	case Public:
		return "public"
	case GuestOnly:
		return "guest_only"
	case Authenticated:
		return "authenticated"
	case Superuser:
		return "superuser"
	default:
		return "unknown"
	}
}

// SessionReader はガードが参照するセッション状態。session.Store が満たす。
type SessionReader interface {
	IsLoggedIn() bool
	IsSuperuser() bool
}

// Decision は1回の遷移に対する判定結果。
// Allow が false の場合、RedirectTo に遷移先のルート名が入る。
type Decision struct {
	Allow      bool
	RedirectTo string
}

// ルート名
const (
	RouteWelcome      = "welcome"
	RouteLogin        = "login"
	RouteRegister     = "register"
	RouteActive       = "active"
	RouteAdmin        = "admin"
	RouteWelcomeAdmin = "welcomeadmin"
	RouteAboutmeAdmin = "aboutmeadmin"
	RouteUserAdmin    = "useradmin"
	RouteHome         = "home"
	RouteAboutme      = "aboutme"
	RouteBlog         = "blog"
	RouteBoard        = "board"
	RouteUserInfo     = "userinfo"
)

// Route は名前付きルート1件。
// Redirect が空でないルートは、遷移すると常にそのパスへ転送される。
type Route struct {
	Name     string
	Path     string
	Policy   Policy
	Redirect string
}

// routes は画面のルート表。子ルートは親のポリシーを引き継ぐ。
var routes = []Route{
	{Name: RouteWelcome, Path: "/", Policy: Public},
	{Name: RouteLogin, Path: "/login", Policy: GuestOnly},
	{Name: RouteRegister, Path: "/register", Policy: GuestOnly},
	{Name: RouteActive, Path: "/active", Policy: GuestOnly},
	{Name: RouteAdmin, Path: "/admin", Policy: Superuser},
	{Name: RouteWelcomeAdmin, Path: "/admin/welcomeadmin", Policy: Superuser},
	{Name: RouteAboutmeAdmin, Path: "/admin/aboutmeadmin", Policy: Superuser},
	{Name: RouteUserAdmin, Path: "/admin/useradmin", Policy: Superuser},
	{Name: RouteHome, Path: "/home", Policy: Public, Redirect: "/home/aboutme"},
	{Name: RouteAboutme, Path: "/home/aboutme", Policy: Public},
	{Name: RouteBlog, Path: "/home/blog", Policy: Public},
	{Name: RouteBoard, Path: "/home/board", Policy: Public},
	{Name: RouteUserInfo, Path: "/home/userinfo", Policy: Authenticated},
}

// Routes はルート表のコピーを返す。
func Routes() []Route {
	return append([]Route(nil), routes...)
}

// Lookup は名前からルートを引く。
func Lookup(name string) (Route, bool) {
	for _, r := range routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// PathFor はルート名に対応するパスを返す。未知の名前の場合は "/"。
func PathFor(name string) string {
	if r, ok := Lookup(name); ok {
		return r.Path
	}
	return "/"
}

// Match はパスに最も長く一致するルートを返す。
// "/home/blog/3" は blog ルートに一致する。
func Match(path string) (Route, bool) {
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	var (
		best  Route
		found bool
	)
	for _, r := range routes {
		if path == r.Path || (r.Path != "/" && strings.HasPrefix(path, r.Path+"/")) {
			if !found || len(r.Path) > len(best.Path) {
				best, found = r, true
			}
		}
	}
	if !found && path == "" {
		return routes[0], true
	}
	return best, found
}

// PolicyFor はルートへのリクエストに適用するポリシーを返す。
// 公開ルート配下でも参照以外のメソッド（コメント投稿など）はログインを要求する。
func PolicyFor(route Route, method string) Policy {
	if route.Policy != Public {
		return route.Policy
	}
	switch method {
	case "GET", "HEAD", "OPTIONS":
		return Public
	default:
		return Authenticated
	}
}

// Check はセッションの状態からpolicyで保護されたルートへの遷移可否を判定する。
func Check(s SessionReader, policy Policy) Decision {
	switch policy {
	case GuestOnly:
		if s.IsLoggedIn() {
			return Decision{RedirectTo: RouteHome}
		}
	case Authenticated:
		if !s.IsLoggedIn() {
			return Decision{RedirectTo: RouteLogin}
		}
	case Superuser:
		if !s.IsLoggedIn() || !s.IsSuperuser() {
			return Decision{RedirectTo: RouteLogin}
		}
	}
	return Decision{Allow: true}
}
