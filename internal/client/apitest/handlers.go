package apitest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		Gender      string `json:"gender"`
		BirthDate   string `json:"birth_date"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
		Password    string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "", map[string]any{"body": []string{err.Error()}})
		return
	}

	missing := map[string]any{}
	for name, v := range map[string]string{"username": req.Username, "email": req.Email, "password": req.Password} {
		if v == "" {
			missing[name] = []string{"Ce champ est obligatoire."}
		}
	}
	if len(missing) > 0 {
		failure(w, http.StatusBadRequest, "", missing)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Email]; exists {
		failure(w, http.StatusBadRequest, "Un utilisateur avec cet email existe déjà.", nil)
		return
	}
	id := models.Identity{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Gender:      req.Gender,
		BirthDate:   req.BirthDate,
		PhoneNumber: req.PhoneNumber,
	}
	s.users[req.Email] = &user{identity: id, password: req.Password}
	success(w, http.StatusCreated, "Inscription réussie.", id)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = decode(r, &req)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[req.Email]
	if !ok || u.password != req.Password {
		failure(w, http.StatusUnauthorized, "Identifiants invalides.", nil)
		return
	}
	access := s.issue(w, req.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Connexion réussie.",
		"data":    u.identity,
		"access":  access,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if c, err := r.Cookie(AccessCookie); err == nil {
		delete(s.access, c.Value)
	}
	if c, err := r.Cookie(RefreshCookie); err == nil {
		delete(s.refresh, c.Value)
	}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Path: "/", MaxAge: -1})
	success(w, http.StatusOK, "Déconnexion réussie.", nil)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(RefreshCookie)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Refresh token manquant."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.refresh[c.Value]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Refresh token invalide."})
		return
	}
	delete(s.refresh, c.Value)
	access := s.issue(w, email)
	writeJSON(w, http.StatusOK, map[string]any{"access": access})
}

func (s *Server) handleCheck(w http.ResponseWriter, _ *http.Request, _ string) {
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, email string) {
	var fields map[string]string
	if err := decode(r, &fields); err != nil || len(fields) == 0 {
		failure(w, http.StatusBadRequest, "Aucune donnée à mettre à jour.", nil)
		return
	}
	for name := range fields {
		if !models.IsProfileField(name) {
			failure(w, http.StatusBadRequest, "Champ inconnu : "+name, nil)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[email]
	if v, ok := fields["email"]; ok && v != email {
		if _, taken := s.users[v]; taken {
			failure(w, http.StatusBadRequest, "", map[string]any{"email": []string{"Cet email est déjà utilisé."}})
			return
		}
	}

	b, _ := json.Marshal(u.identity)
	var merged map[string]string
	_ = json.Unmarshal(b, &merged)
	for k, v := range fields {
		merged[k] = v
	}
	b, _ = json.Marshal(merged)
	var updated models.Identity
	_ = json.Unmarshal(b, &updated)

	u.identity = updated
	if updated.Email != email {
		delete(s.users, email)
		s.users[updated.Email] = u
		for tok, e := range s.access {
			if e == email {
				s.access[tok] = updated.Email
			}
		}
		for tok, e := range s.refresh {
			if e == email {
				s.refresh[tok] = updated.Email
			}
		}
		s.records[updated.Email] = s.records[email]
		delete(s.records, email)
	}
	success(w, http.StatusOK, "Profil mis à jour.", updated)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, _ *http.Request, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, email)
	delete(s.records, email)
	for tok, e := range s.access {
		if e == email {
			delete(s.access, tok)
		}
	}
	for tok, e := range s.refresh {
		if e == email {
			delete(s.refresh, tok)
		}
	}
	success(w, http.StatusOK, "Compte supprimé.", nil)
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil || req.Email == "" {
		failure(w, http.StatusBadRequest, "Email requis.", nil)
		return
	}

	purpose := mux.Vars(r)["purpose"]

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.users[req.Email]
	if purpose == string(models.CodePurposeRegistration) && exists {
		failure(w, http.StatusBadRequest, "Un utilisateur avec cet email existe déjà.", nil)
		return
	}
	if purpose == string(models.CodePurposeResetPassword) && !exists {
		failure(w, http.StatusBadRequest, "Aucun utilisateur avec cet email.", nil)
		return
	}
	s.codes[req.Email] = VerificationCode
	success(w, http.StatusOK, "Code envoyé.", nil)
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	_ = decode(r, &req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if code, ok := s.codes[req.Email]; ok && code == req.Code {
		success(w, http.StatusOK, "Code valide.", map[string]bool{"valid": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": false,
		"message": "Code invalide ou expiré.",
		"data":    map[string]bool{"valid": false},
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		NewPassword string `json:"new_password"`
	}
	_ = decode(r, &req)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[req.Email]
	if !ok {
		failure(w, http.StatusBadRequest, "Aucun utilisateur avec cet email.", nil)
		return
	}
	if req.NewPassword == "" {
		failure(w, http.StatusBadRequest, "Mot de passe requis.", nil)
		return
	}
	u.password = req.NewPassword
	delete(s.codes, req.Email)
	success(w, http.StatusOK, "Mot de passe réinitialisé.", nil)
}

var activityFactors = map[string]float64{
	"sedentaire":   1.2,
	"leger":        1.375,
	"modere":       1.55,
	"intense":      1.725,
	"tres_intense": 1.9,
}

var goalOffsets = map[string]float64{
	"perte":    -500,
	"maintien": 0,
	"prise":    500,
}

func (s *Server) handleCalories(w http.ResponseWriter, r *http.Request, _ string) {
	var req struct {
		Gender        string   `json:"gender"`
		Age           *int     `json:"age"`
		Date          string   `json:"date"`
		WeightKg      *float64 `json:"weight_kg"`
		HeightCm      *float64 `json:"height_cm"`
		ActivityLevel string   `json:"activity_level"`
		Goal          string   `json:"goal"`
	}
	if err := decode(r, &req); err != nil {
		failure(w, http.StatusBadRequest, "Requête invalide.", nil)
		return
	}
	factor, okActivity := activityFactors[req.ActivityLevel]
	offset, okGoal := goalOffsets[req.Goal]
	if req.Age == nil || req.WeightKg == nil || req.HeightCm == nil || !okActivity || !okGoal {
		failure(w, http.StatusBadRequest, "Données incomplètes pour le calcul.", nil)
		return
	}

	weight, height, age := *req.WeightKg, *req.HeightCm, float64(*req.Age)
	bmr := 10*weight + 6.25*height - 5*age
	if req.Gender == models.GenderMale {
		bmr += 5
	} else {
		bmr -= 161
	}
	tdee := bmr * factor

	success(w, http.StatusOK, "Calcul effectué.", models.CaloriesResult{
		BMR:                 round2(bmr),
		TDEE:                round2(tdee),
		RecommendedCalories: round2(tdee + offset),
	})
}

func (s *Server) handleIMC(w http.ResponseWriter, r *http.Request, email string) {
	var req struct {
		WeightKg float64 `json:"weight_kg"`
		HeightCm float64 `json:"height_cm"`
		Date     string  `json:"date"`
	}
	if err := decode(r, &req); err != nil || req.WeightKg <= 0 || req.HeightCm <= 0 {
		failure(w, http.StatusBadRequest, "Poids et taille doivent être positifs.", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if req.Date == "" {
		req.Date = now.Format(time.DateOnly)
	}
	m := req.HeightCm / 100
	u := s.users[email]

	s.nextID++
	rec := models.ProgressRecord{
		ID:        s.nextID,
		Date:      req.Date,
		WeightKg:  models.Float(req.WeightKg),
		HeightCm:  models.Float(req.HeightCm),
		BMI:       models.Float(round2(req.WeightKg / (m * m))),
		Gender:    u.identity.Gender,
		CreatedAt: &now,
	}
	s.records[email] = append(s.records[email], rec)
	success(w, http.StatusCreated, "Enregistrement créé.", rec)
}

func (s *Server) handleListRecords(w http.ResponseWriter, _ *http.Request, email string) {
	s.mu.Lock()
	list := append([]models.ProgressRecord{}, s.records[email]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) findRecord(email string, r *http.Request) int {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	for i, rec := range s.records[email] {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) handlePatchRecord(w http.ResponseWriter, r *http.Request, email string) {
	var fields map[string]any
	if err := decode(r, &fields); err != nil {
		failure(w, http.StatusBadRequest, "Requête invalide.", nil)
		return
	}
	if _, ok := fields["id"]; ok {
		failure(w, http.StatusBadRequest, "L'identifiant ne peut pas être modifié.", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findRecord(email, r)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}

	b, _ := json.Marshal(s.records[email][i])
	var merged map[string]any
	_ = json.Unmarshal(b, &merged)
	for k, v := range fields {
		merged[k] = v
	}
	b, _ = json.Marshal(merged)
	var updated models.ProgressRecord
	if err := json.Unmarshal(b, &updated); err != nil {
		failure(w, http.StatusBadRequest, "Valeur invalide.", nil)
		return
	}
	now := s.now()
	updated.ModifiedAt = &now
	if updated.WeightKg != nil && updated.HeightCm != nil && *updated.HeightCm > 0 {
		m := *updated.HeightCm / 100
		updated.BMI = models.Float(round2(*updated.WeightKg / (m * m)))
	}
	s.records[email][i] = updated
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findRecord(email, r)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	list := s.records[email]
	s.records[email] = append(list[:i:i], list[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}
